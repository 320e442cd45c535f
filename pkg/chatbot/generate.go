package chatbot

import (
	"context"
	"fmt"

	"github.com/schardosin/bpmnbot/pkg/bpmn"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/metrics"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/viewer"
	"go.uber.org/zap"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Result is a generated diagram.
type Result struct {
	XML        string      `json:"xml"`
	Path       string      `json:"path"`
	HTMLPath   string      `json:"html_path,omitempty"`
	Report     bpmn.Report `json:"report"`
	ViewerHTML string      `json:"-"`
	Attempts   int         `json:"attempts"`
	// Warnings are the user-facing texts for problems left after the last attempt.
	Warnings []string `json:"warnings,omitempty"`
}

// finish runs the generation branch for the termination keyword.
func (b *Bot) finish(ctx context.Context, sessionID string, conv *conversation.Conversation, apiKey string) (*Reply, error) {
	catalog := prompts.For(conv.Language)
	reply := &Reply{Kind: KindGenerate}

	description := conv.UserContext()
	if conv.UserMessageCount() == 0 {
		metrics.TurnsTotal.WithLabelValues("empty", "rejected").Inc()
		reply.Notice = catalog.EmptyContextNotice(b.Config().Chat.Keyword)
		return reply, ErrEmptyContext
	}

	result, err := b.Generate(ctx, sessionID, conv.Language, description, apiKey)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues(string(KindGenerate), "error").Inc()
		reply.Notice = fmt.Sprintf(catalog.GenerationFailed, err)
		return reply, err
	}

	reply.Result = result
	reply.Messages = append(reply.Messages, conv.Append(conversation.RoleChatbot, catalog.FinishedMessage(b.writer.FileName(sessionID))))
	metrics.TurnsTotal.WithLabelValues(string(KindGenerate), "ok").Inc()
	return reply, nil
}

// Generate asks the model for a BPMN diagram of description, validates the
// answer and retries with a repair prompt while attempts remain. The last
// output is kept even if problems remain; they are reported as warnings.
func (b *Bot) Generate(ctx context.Context, sessionID, lang, description, apiKey string) (*Result, error) {
	catalog := prompts.For(lang)
	cfg := b.Config()

	llm, err := b.llm(ctx, cfg.GenerationModel(), apiKey)
	if err != nil {
		return nil, err
	}

	llmReq := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText(catalog.GenerationPrompt(description), genai.RoleUser),
		},
		Config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Generation.Temperature),
			MaxOutputTokens: cfg.Generation.MaxTokens,
		},
	}

	maxAttempts := cfg.Generation.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var xmlText string
	var report bpmn.Report
	attempt := 1
	for ; attempt <= maxAttempts; attempt++ {
		raw, err := b.call(ctx, llm, llmReq, "generate", nil)
		if err != nil {
			b.logger.Warn("generation request failed",
				zap.String("model", llm.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}

		xmlText = bpmn.Normalize(raw)
		report = bpmn.Inspect(xmlText)

		if !report.NeedsRepair() {
			break
		}

		problems := report.Problems()
		b.logger.Info("generated diagram has problems",
			zap.String("session", sessionID),
			zap.Int("attempt", attempt),
			zap.Strings("problems", problems))

		if attempt == maxAttempts {
			break
		}

		// Add the model's answer and the problems to history for retry
		llmReq.Contents = append(llmReq.Contents,
			genai.NewContentFromText(raw, genai.RoleModel),
			genai.NewContentFromText(catalog.RepairPrompt(problems), genai.RoleUser),
		)
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}

	result := &Result{
		XML:      xmlText,
		Report:   report,
		Attempts: attempt,
		Warnings: warnings(catalog, report),
	}

	result.Path, err = b.writer.Write(sessionID, xmlText)
	if err != nil {
		return nil, err
	}

	result.ViewerHTML, err = viewer.Render(xmlText, viewer.OptionsFromConfig(cfg.Viewer, catalog.ViewerError))
	if err != nil {
		return nil, err
	}
	if cfg.Output.WriteHTML {
		result.HTMLPath, err = b.writer.WriteHTML(sessionID, result.ViewerHTML)
		if err != nil {
			return nil, err
		}
	}

	metrics.RecordDiagram(result.Attempts, !report.NeedsRepair())
	b.logger.Info("diagram generated",
		zap.String("session", sessionID),
		zap.String("path", result.Path),
		zap.Int("attempts", result.Attempts),
		zap.String("summary", report.Summary()))

	return result, nil
}

func warnings(catalog *prompts.Catalog, report bpmn.Report) []string {
	var out []string
	if !report.WellFormed {
		out = append(out, fmt.Sprintf(catalog.NotWellFormed, report.ParseError))
	}
	if report.MissingEdges {
		out = append(out, catalog.MissingEdges)
	}
	return append(out, report.StructureProblems()...)
}
