package cohere

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
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://api.cohere.ai/v1"

	roleUser    = "USER"
	roleChatbot = "CHATBOT"
)

// Provider implements model.LLM for Cohere's chat endpoint.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Option customizes a Provider.
type Option func(*Provider)

// WithBaseURL points the provider at another API host (proxies, tests).
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewProvider creates a new Cohere provider.
func NewProvider(apiKey, modelName string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements model.LLM.
func (p *Provider) Name() string {
	return p.model
}

// GenerateContent implements model.LLM.
func (p *Provider) GenerateContent(ctx context.Context, req *model.LLMRequest, streaming bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := p.toChatRequest(req, streaming)
		if err != nil {
			yield(nil, err)
			return
		}

		reqBody, err := json.Marshal(chatReq)
		if err != nil {
			yield(nil, err)
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat", bytes.NewReader(reqBody))
		if err != nil {
			yield(nil, err)
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			yield(nil, apiError(resp))
			return
		}

		if streaming {
			p.handleStream(resp.Body, yield)
		} else {
			p.handleResponse(resp.Body, yield)
		}
	}
}

// toChatRequest maps the genai conversation onto Cohere's shape: the last
// user turn becomes message, everything before it chat_history, and the
// system instruction the preamble.
func (p *Provider) toChatRequest(req *model.LLMRequest, streaming bool) (*ChatRequest, error) {
	if req == nil || len(req.Contents) == 0 {
		return nil, fmt.Errorf("cohere: request has no contents")
	}

	chatReq := &ChatRequest{
		Model:  p.model,
		Stream: streaming,
	}
	if req.Model != "" {
		chatReq.Model = req.Model
	}

	if req.Config != nil {
		if req.Config.SystemInstruction != nil {
			chatReq.Preamble = joinText(req.Config.SystemInstruction)
		}
		chatReq.Temperature = req.Config.Temperature
		if req.Config.MaxOutputTokens > 0 {
			chatReq.MaxTokens = req.Config.MaxOutputTokens
		}
	}

	last := req.Contents[len(req.Contents)-1]
	if last.Role == "model" {
		return nil, fmt.Errorf("cohere: last message must come from the user")
	}
	chatReq.Message = joinText(last)

	for _, c := range req.Contents[:len(req.Contents)-1] {
		role := roleUser
		if c.Role == "model" {
			role = roleChatbot
		}
		chatReq.ChatHistory = append(chatReq.ChatHistory, ChatMessage{
			Role:    role,
			Message: joinText(c),
		})
	}

	return chatReq, nil
}

func joinText(c *genai.Content) string {
	var sb strings.Builder
	for _, part := range c.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func (p *Provider) handleResponse(body io.Reader, yield func(*model.LLMResponse, error) bool) {
	var resp ChatResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		yield(nil, fmt.Errorf("cohere: failed to decode response: %w", err))
		return
	}
	yield(toLLMResponse(resp.Text, resp.Meta, false), nil)
}

func (p *Provider) handleStream(body io.Reader, yield func(*model.LLMResponse, error) bool) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// the v1 stream is newline-delimited JSON; tolerate SSE framing too
		line = strings.TrimPrefix(line, "data: ")
		if line == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		switch event.EventType {
		case "text-generation":
			if !yield(toLLMResponse(event.Text, nil, true), nil) {
				return
			}
		case "stream-end":
			final := &model.LLMResponse{TurnComplete: true}
			if event.Response != nil && event.Response.Meta != nil {
				final.UsageMetadata = usage(event.Response.Meta)
			}
			yield(final, nil)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		yield(nil, err)
	}
}

func toLLMResponse(text string, meta *Meta, partial bool) *model.LLMResponse {
	resp := &model.LLMResponse{
		Content:      genai.NewContentFromText(text, genai.RoleModel),
		Partial:      partial,
		TurnComplete: !partial,
	}
	if meta != nil {
		resp.UsageMetadata = usage(meta)
	}
	return resp
}

func usage(meta *Meta) *genai.GenerateContentResponseUsageMetadata {
	in := int32(meta.BilledUnits.InputTokens)
	out := int32(meta.BilledUnits.OutputTokens)
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     in,
		CandidatesTokenCount: out,
		TotalTokenCount:      in + out,
	}
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e ErrorResponse
	if json.Unmarshal(body, &e) == nil && e.Message != "" {
		return fmt.Errorf("cohere api error: %s - %s", resp.Status, e.Message)
	}
	return fmt.Errorf("cohere api error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
}

// ListModels returns the chat-capable models visible to the key.
func ListModels(ctx context.Context, apiKey string, opts ...Option) ([]string, error) {
	p := NewProvider(apiKey, "", opts...)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models?endpoint=chat&page_size=100", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
