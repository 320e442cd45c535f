package openai

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Provider implements model.LLM for OpenAI and OpenAI-compatible servers
// (OpenRouter, Groq, xAI, Ollama, LM Studio).
type Provider struct {
	client *openai.Client
	model  string
}

// NewProvider creates a new OpenAI provider.
func NewProvider(client *openai.Client, modelName string) *Provider {
	return &Provider{
		client: client,
		model:  modelName,
	}
}

// Name implements model.LLM.
func (p *Provider) Name() string {
	return p.model
}

// GenerateContent implements model.LLM.
func (p *Provider) GenerateContent(ctx context.Context, req *model.LLMRequest, streaming bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		openAIReq := p.toChatCompletionRequest(req)

		if streaming {
			stream, err := p.client.CreateChatCompletionStream(ctx, openAIReq)
			if err != nil {
				yield(nil, err)
				return
			}
			defer stream.Close()

			for {
				resp, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					yield(&model.LLMResponse{TurnComplete: true}, nil)
					return
				}
				if err != nil {
					yield(nil, err)
					return
				}
				if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
					continue
				}
				if !yield(&model.LLMResponse{
					Content: genai.NewContentFromText(resp.Choices[0].Delta.Content, genai.RoleModel),
					Partial: true,
				}, nil) {
					return
				}
			}
		}

		resp, err := p.client.CreateChatCompletion(ctx, openAIReq)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(p.toLLMResponse(resp), nil)
	}
}

func (p *Provider) toChatCompletionRequest(req *model.LLMRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: p.toOpenAIMessages(req),
	}
	if req.Model != "" {
		out.Model = req.Model
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			out.Temperature = *req.Config.Temperature
		}
		if req.Config.MaxOutputTokens > 0 {
			out.MaxTokens = int(req.Config.MaxOutputTokens)
		}
	}
	return out
}

func (p *Provider) toOpenAIMessages(req *model.LLMRequest) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	// System instruction
	if req.Config != nil && req.Config.SystemInstruction != nil {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: joinText(req.Config.SystemInstruction),
		})
	}

	for _, c := range req.Contents {
		role := openai.ChatMessageRoleUser
		if c.Role == "model" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: joinText(c),
		})
	}
	return messages
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

func (p *Provider) toLLMResponse(resp openai.ChatCompletionResponse) *model.LLMResponse {
	out := &model.LLMResponse{
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.PromptTokens),
			CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
			TotalTokenCount:      int32(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	out.Content = genai.NewContentFromText(resp.Choices[0].Message.Content, genai.RoleModel)
	return out
}
