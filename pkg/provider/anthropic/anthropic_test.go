package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestToAnthropicRequestMergesAndPrefixes(t *testing.T) {
	p := NewProvider("k", "claude")
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("Bienvenido", genai.RoleModel),
			genai.NewContentFromText("Misión", genai.RoleModel),
			genai.NewContentFromText("Mi proceso", genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("escucha", genai.RoleUser),
			MaxOutputTokens:   3000,
		},
	}

	out := p.toAnthropicRequest(req, false)

	if out.System != "escucha" {
		t.Errorf("System = %q, expected escucha", out.System)
	}
	if out.MaxTokens != 3000 {
		t.Errorf("MaxTokens = %d, expected 3000", out.MaxTokens)
	}
	if len(out.Messages) != 3 {
		t.Fatalf("Messages = %d, expected 3 (placeholder, merged assistant, user)", len(out.Messages))
	}
	if out.Messages[0].Role != "user" {
		t.Errorf("first message role = %q, expected user", out.Messages[0].Role)
	}
	if len(out.Messages[1].Content) != 2 {
		t.Errorf("assistant greetings should be merged, got %d blocks", len(out.Messages[1].Content))
	}
	if out.Messages[2].Content[0].Text != "Mi proceso" {
		t.Errorf("last message = %q", out.Messages[2].Content[0].Text)
	}
}

func TestGenerateContentStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		events := []string{
			`data: {"type":"message_start"}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hola"}}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" mundo"}}`,
			`data: {"type":"message_stop"}`,
		}
		fmt.Fprint(w, strings.Join(events, "\n\n"))
	}))
	defer srv.Close()

	p := NewProvider("k", "claude")
	p.baseURL = srv.URL

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("hola", genai.RoleUser)}}

	var sb strings.Builder
	done := false
	for resp, err := range p.GenerateContent(context.Background(), req, true) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Content != nil {
			sb.WriteString(resp.Content.Parts[0].Text)
		}
		if resp.TurnComplete {
			done = true
		}
	}

	if sb.String() != "Hola mundo" {
		t.Errorf("text = %q, expected Hola mundo", sb.String())
	}
	if !done {
		t.Error("stream did not complete")
	}
}

func TestListModelsPagesAndSortsNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after_id") == "" {
			fmt.Fprint(w, `{"data":[{"id":"claude-old","created_at":"2024-01-01T00:00:00Z"}],"has_more":true,"last_id":"claude-old"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"claude-new","created_at":"2025-01-01T00:00:00Z"}],"has_more":false}`)
	}))
	defer srv.Close()

	models, err := listModels(context.Background(), srv.Client(), srv.URL, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(models, ",") != "claude-new,claude-old" {
		t.Errorf("models = %v", models)
	}

	if _, err := listModels(context.Background(), srv.Client(), srv.URL, "bad"); err == nil {
		t.Error("expected an error for a rejected key")
	}
}
