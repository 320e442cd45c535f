package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestToOpenAIMessages(t *testing.T) {
	p := NewProvider(openai.NewClient("k"), "gpt-4o")

	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("hola", genai.RoleModel),
			genai.NewContentFromText("un proceso", genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("preamble", genai.RoleUser),
			Temperature:       genai.Ptr(float32(0.4)),
			MaxOutputTokens:   3000,
		},
	}

	out := p.toChatCompletionRequest(req)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, float32(0.4), out.Temperature)
	assert.Equal(t, 3000, out.MaxTokens)
	require.Len(t, out.Messages, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, out.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out.Messages[1].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, out.Messages[2].Role)
	assert.Equal(t, "un proceso", out.Messages[2].Content)
}

func TestGenerateContentAgainstCompatibleServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"<definitions/>"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = srv.URL + "/v1"
	p := NewProvider(openai.NewClientWithConfig(cfg), "llama3")

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("genera", genai.RoleUser)}}

	var got []*model.LLMResponse
	for resp, err := range p.GenerateContent(context.Background(), req, false) {
		require.NoError(t, err)
		got = append(got, resp)
	}

	require.Len(t, got, 1)
	assert.Equal(t, "<definitions/>", got[0].Content.Parts[0].Text)
	assert.Equal(t, int32(12), got[0].UsageMetadata.TotalTokenCount)
}
