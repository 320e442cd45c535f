// Package chatbot runs conversation turns: it listens to the user until the
// termination keyword and then asks the model for the BPMN diagram.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/metrics"
	"github.com/schardosin/bpmnbot/pkg/output"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/provider"
	"go.uber.org/zap"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrEmptyInput    = errors.New("empty input")
	ErrEmptyContext  = errors.New("no process description collected")
	ErrRateLimited   = errors.New("too many requests")
)

// ProviderFunc builds the model for a turn. provider.GetProvider satisfies it.
type ProviderFunc func(ctx context.Context, name, modelName string, cfg *config.AppConfig, opts provider.Options) (model.LLM, error)

// Kind tells which branch a turn took.
type Kind string

const (
	KindChat     Kind = "chat"
	KindGenerate Kind = "generate"
)

// Reply is the outcome of one turn.
type Reply struct {
	Kind Kind
	// Messages appended to the conversation during the turn, in order.
	Messages []conversation.Message
	// Result is set when the turn produced a diagram.
	Result *Result
	// Notice is shown to the user but not stored in the conversation.
	Notice string
}

// Bot holds the dependencies shared by every session.
type Bot struct {
	cfg      atomic.Pointer[config.AppConfig]
	newLLM   ProviderFunc
	writer   *output.Writer
	limiters *limiterSet
	logger   *zap.Logger
}

type Option func(*Bot)

// WithProviderFunc replaces the provider factory, mostly for tests.
func WithProviderFunc(fn ProviderFunc) Option {
	return func(b *Bot) { b.newLLM = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// WithWriter replaces the output writer built from the config.
func WithWriter(w *output.Writer) Option {
	return func(b *Bot) { b.writer = w }
}

// New creates a Bot. cfg must have defaults applied.
func New(cfg *config.AppConfig, opts ...Option) *Bot {
	b := &Bot{
		newLLM:   provider.GetProvider,
		writer:   output.NewWriter(cfg.Output),
		limiters: newLimiterSet(cfg.Studio.RatePerMinute),
		logger:   zap.NewNop(),
	}
	b.cfg.Store(cfg)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Config returns the current configuration. Callers must not modify it.
func (b *Bot) Config() *config.AppConfig {
	return b.cfg.Load()
}

// SetConfig replaces the configuration used by subsequent turns, e.g. after
// the config file changed. cfg must have defaults applied.
func (b *Bot) SetConfig(cfg *config.AppConfig) {
	b.cfg.Store(cfg)
}

// Writer returns the output writer.
func (b *Bot) Writer() *output.Writer {
	return b.writer
}

// Turn processes one user input against conv and mutates it.
func (b *Bot) Turn(ctx context.Context, sessionID string, conv *conversation.Conversation, input, apiKey string) (*Reply, error) {
	return b.turn(ctx, sessionID, conv, input, apiKey, nil)
}

// Stream is Turn with the chat reply delivered through onChunk as it arrives.
// Generation turns are not streamed; onChunk is not called for them.
func (b *Bot) Stream(ctx context.Context, sessionID string, conv *conversation.Conversation, input, apiKey string, onChunk func(string)) (*Reply, error) {
	if onChunk == nil {
		onChunk = func(string) {}
	}
	return b.turn(ctx, sessionID, conv, input, apiKey, onChunk)
}

// Forget drops per-session state held by the bot.
func (b *Bot) Forget(sessionID string) {
	b.limiters.remove(sessionID)
}

func (b *Bot) turn(ctx context.Context, sessionID string, conv *conversation.Conversation, input, apiKey string, onChunk func(string)) (*Reply, error) {
	catalog := prompts.For(conv.Language)

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if !b.hasKey(apiKey) {
		metrics.TurnsTotal.WithLabelValues("missing_key", "rejected").Inc()
		return &Reply{Notice: catalog.MissingAPIKey}, ErrMissingAPIKey
	}

	if !b.limiters.allow(sessionID) {
		metrics.RateLimited.Inc()
		return nil, ErrRateLimited
	}

	if conversation.IsTermination(input, b.Config().Chat.Keyword) {
		return b.finish(ctx, sessionID, conv, apiKey)
	}
	return b.chat(ctx, conv, input, apiKey, onChunk)
}

func (b *Bot) hasKey(apiKey string) bool {
	return apiKey != "" || config.HasAPIKey(b.Config(), provider.NormalizeName(b.Config().General.DefaultProvider))
}

func (b *Bot) llm(ctx context.Context, modelName, apiKey string) (model.LLM, error) {
	llm, err := b.newLLM(ctx, b.Config().General.DefaultProvider, modelName, b.Config(), provider.Options{APIKey: apiKey})
	if errors.Is(err, provider.ErrNoAPIKey) {
		return nil, ErrMissingAPIKey
	}
	return llm, err
}

// chat records the user message and asks the model for a listening reply.
func (b *Bot) chat(ctx context.Context, conv *conversation.Conversation, input, apiKey string, onChunk func(string)) (*Reply, error) {
	catalog := prompts.For(conv.Language)
	reply := &Reply{Kind: KindChat}

	reply.Messages = append(reply.Messages, conv.Append(conversation.RoleUser, input))

	llm, err := b.llm(ctx, b.Config().General.DefaultModel, apiKey)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(KindChat), "error").Inc()
		reply.Notice = fmt.Sprintf(catalog.ChatFailed, err)
		return reply, err
	}

	req := &model.LLMRequest{
		Contents: conv.ToContents(),
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(catalog.Preamble, genai.RoleUser),
		},
	}
	if b.Config().Chat.Temperature > 0 {
		req.Config.Temperature = genai.Ptr(b.Config().Chat.Temperature)
	}

	text, err := b.call(ctx, llm, req, "chat", onChunk)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(KindChat), "error").Inc()
		b.logger.Warn("chat request failed", zap.String("model", llm.Name()), zap.Error(err))
		reply.Notice = fmt.Sprintf(catalog.ChatFailed, err)
		return reply, err
	}

	reply.Messages = append(reply.Messages, conv.Append(conversation.RoleChatbot, text))
	metrics.TurnsTotal.WithLabelValues(string(KindChat), "ok").Inc()
	return reply, nil
}

// call drains the model response into a string. A non-nil onChunk selects
// streaming mode.
func (b *Bot) call(ctx context.Context, llm model.LLM, req *model.LLMRequest, purpose string, onChunk func(string)) (string, error) {
	start := time.Now()
	providerName := provider.NormalizeName(b.Config().General.DefaultProvider)

	var sb strings.Builder
	var callErr error
	sawPartial := false
	for resp, err := range llm.GenerateContent(ctx, req, onChunk != nil) {
		if err != nil {
			callErr = err
			break
		}
		if resp == nil {
			continue
		}
		if resp.UsageMetadata != nil {
			metrics.RecordTokens(providerName, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
		}
		if resp.Content == nil {
			continue
		}
		// some providers close a stream with the aggregated text
		if sawPartial && !resp.Partial {
			continue
		}
		sawPartial = sawPartial || resp.Partial
		for _, part := range resp.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
			if onChunk != nil {
				onChunk(part.Text)
			}
		}
	}

	metrics.RecordLLMRequest(providerName, purpose, callErr, time.Since(start))
	if callErr != nil {
		return "", callErr
	}
	return sb.String(), nil
}
