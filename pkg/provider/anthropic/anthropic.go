package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	apiURL           = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// Provider implements model.LLM for Anthropic.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewProvider creates a new Anthropic provider.
func NewProvider(apiKey, modelName string) *Provider {
	return &Provider{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: apiURL,
		client:  &http.Client{},
	}
}

// Name implements model.LLM.
func (p *Provider) Name() string {
	return p.model
}

// GenerateContent implements model.LLM.
func (p *Provider) GenerateContent(ctx context.Context, req *model.LLMRequest, streaming bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		reqBody, err := json.Marshal(p.toAnthropicRequest(req, streaming))
		if err != nil {
			yield(nil, err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewBuffer(reqBody))
		if err != nil {
			yield(nil, err)
			return
		}

		httpReq.Header.Set("x-api-key", p.apiKey)
		httpReq.Header.Set("anthropic-version", apiVersion)
		httpReq.Header.Set("content-type", "application/json")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield(nil, fmt.Errorf("anthropic api error: %s - %s", resp.Status, string(body)))
			return
		}

		if streaming {
			p.handleStream(resp.Body, yield)
		} else {
			p.handleResponse(resp.Body, yield)
		}
	}
}

func (p *Provider) handleResponse(body io.Reader, yield func(*model.LLMResponse, error) bool) {
	var resp Response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		yield(nil, err)
		return
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}

	yield(&model.LLMResponse{
		Content:      genai.NewContentFromText(sb.String(), genai.RoleModel),
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.InputTokens),
			CandidatesTokenCount: int32(resp.Usage.OutputTokens),
			TotalTokenCount:      int32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil)
}

func (p *Provider) handleStream(body io.Reader, yield func(*model.LLMResponse, error) bool) {
	scanner := bufio.NewScanner(body)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event StreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				if !yield(&model.LLMResponse{
					Content: genai.NewContentFromText(event.Delta.Text, genai.RoleModel),
					Partial: true,
				}, nil) {
					return
				}
			}
		case "message_stop":
			yield(&model.LLMResponse{TurnComplete: true}, nil)
			return
		case "error":
			yield(nil, fmt.Errorf("anthropic stream error: %s", data))
			return
		}
	}

	if err := scanner.Err(); err != nil {
		yield(nil, err)
	}
}

func (p *Provider) toAnthropicRequest(req *model.LLMRequest, streaming bool) *Request {
	out := &Request{
		Model:     p.model,
		MaxTokens: defaultMaxTokens,
		Stream:    streaming,
	}

	if req.Config != nil {
		if req.Config.SystemInstruction != nil {
			var sb strings.Builder
			for _, part := range req.Config.SystemInstruction.Parts {
				sb.WriteString(part.Text)
			}
			out.System = sb.String()
		}
		out.Temperature = req.Config.Temperature
		if req.Config.MaxOutputTokens > 0 {
			out.MaxTokens = int(req.Config.MaxOutputTokens)
		}
	}

	for _, c := range req.Contents {
		role := "user"
		if c.Role == "model" {
			role = "assistant"
		}

		var content []Content
		for _, part := range c.Parts {
			if part.Text != "" {
				content = append(content, Content{Type: "text", Text: part.Text})
			}
		}
		if len(content) == 0 {
			continue
		}

		// the API rejects consecutive turns from the same role
		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			out.Messages[n-1].Content = append(out.Messages[n-1].Content, content...)
			continue
		}
		out.Messages = append(out.Messages, Message{Role: role, Content: content})
	}

	// conversations may open with assistant greetings
	if len(out.Messages) > 0 && out.Messages[0].Role == "assistant" {
		out.Messages = append([]Message{{Role: "user", Content: []Content{{Type: "text", Text: "."}}}}, out.Messages...)
	}

	return out
}

// Structs for Anthropic API

type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Response struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Role    string    `json:"role"`
	Content []Content `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type StreamEvent struct {
	Type  string       `json:"type"`
	Delta *StreamDelta `json:"delta,omitempty"`
	Index int          `json:"index,omitempty"`
}

type StreamDelta struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
