package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/provider/anthropic"
	"github.com/schardosin/bpmnbot/pkg/provider/cohere"
	"github.com/schardosin/bpmnbot/pkg/provider/google"
	openai_provider "github.com/schardosin/bpmnbot/pkg/provider/openai"
	"google.golang.org/adk/model"
)

// ErrNoAPIKey is returned when a hosted provider has no key from the
// session, the environment or the config file.
var ErrNoAPIKey = errors.New("api key not set")

// ProviderDisplayNames maps provider IDs to their proper display names.
// This is the centralized source of truth for how provider names should be displayed
// in both the CLI and UI.
var ProviderDisplayNames = map[string]string{
	"anthropic":  "Anthropic",
	"cohere":     "Cohere",
	"gemini":     "Google GenAI",
	"groq":       "Groq",
	"lm_studio":  "LM Studio",
	"ollama":     "Ollama",
	"openai":     "OpenAI",
	"openrouter": "Openrouter",
	"xai":        "xAI",
}

// openAICompatible lists providers served through the OpenAI client and
// their default endpoints.
var openAICompatible = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"xai":        "https://api.x.ai/v1",
	"ollama":     "http://localhost:11434",
	"lm_studio":  "http://localhost:1234/v1",
}

var defaultModels = map[string]string{
	"cohere":    config.DefaultModel,
	"anthropic": "claude-3-5-sonnet-latest",
	"gemini":    "gemini-1.5-flash",
	"openai":    "gpt-4o",
	"groq":      "llama3-70b-8192",
	"xai":       "grok-beta",
}

// Options carries per-call overrides.
type Options struct {
	// APIKey replaces the configured key, e.g. a key typed into the UI for
	// a single session.
	APIKey string
	// BaseURL replaces the provider endpoint.
	BaseURL string
}

// GetProviderDisplayName returns the proper display name for a provider ID.
// If the provider ID is not found, it returns the ID as-is.
func GetProviderDisplayName(providerID string) string {
	if name, ok := ProviderDisplayNames[providerID]; ok {
		return name
	}
	return providerID
}

// GetProviderIDs returns a sorted list of all known provider IDs.
func GetProviderIDs() []string {
	ids := make([]string, 0, len(ProviderDisplayNames))
	for id := range ProviderDisplayNames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NormalizeName maps aliases to provider IDs. An empty name selects Cohere.
func NormalizeName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return config.DefaultProvider
	case "google_genai", "google":
		return "gemini"
	case "grok":
		return "xai"
	case "lmstudio":
		return "lm_studio"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// GetProvider returns an LLM model based on the provider name.
func GetProvider(ctx context.Context, name string, modelName string, cfg *config.AppConfig, opts Options) (model.LLM, error) {
	name = NormalizeName(name)
	if _, ok := ProviderDisplayNames[name]; !ok {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}

	if modelName == "" {
		modelName = defaultModels[name]
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name required for %s", name)
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = config.ProviderValue(cfg, name, "api_key")
	}
	if apiKey == "" && !isLocal(name) {
		return nil, fmt.Errorf("%s: %w", GetProviderDisplayName(name), ErrNoAPIKey)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = config.ProviderValue(cfg, name, "base_url")
	}

	switch name {
	case "cohere":
		var copts []cohere.Option
		if baseURL != "" {
			copts = append(copts, cohere.WithBaseURL(baseURL))
		}
		return cohere.NewProvider(apiKey, modelName, copts...), nil

	case "anthropic":
		return anthropic.NewProvider(apiKey, modelName), nil

	case "gemini":
		return google.NewProvider(ctx, modelName, apiKey)

	case "openai":
		if baseURL == "" {
			return openai_provider.NewProvider(openai.NewClient(apiKey), modelName), nil
		}
		return openai_provider.NewProvider(newOpenAIClient(apiKey, baseURL), modelName), nil

	default:
		if baseURL == "" {
			baseURL = openAICompatible[name]
		}
		if name == "ollama" {
			// Ollama's OpenAI compatible endpoint is at /v1
			baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
		if apiKey == "" {
			// not required by local servers but must be non-empty
			apiKey = name
		}
		return openai_provider.NewProvider(newOpenAIClient(apiKey, baseURL), modelName), nil
	}
}

// ListModels returns the models a provider offers, used by setup.
func ListModels(ctx context.Context, name string, cfg *config.AppConfig) ([]string, error) {
	name = NormalizeName(name)
	apiKey := config.ProviderValue(cfg, name, "api_key")
	if apiKey == "" && !isLocal(name) {
		return nil, fmt.Errorf("%s: %w", GetProviderDisplayName(name), ErrNoAPIKey)
	}

	switch name {
	case "cohere":
		return cohere.ListModels(ctx, apiKey)
	case "anthropic":
		return anthropic.ListModels(ctx, apiKey)
	case "gemini":
		return google.ListModels(ctx, apiKey)
	case "openai":
		return openai_provider.ListModels(ctx, openai.NewClient(apiKey), "gpt")
	}

	baseURL, ok := openAICompatible[name]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
	if v := config.ProviderValue(cfg, name, "base_url"); v != "" {
		baseURL = v
	}
	if name == "ollama" {
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	}
	if apiKey == "" {
		apiKey = name
	}
	return openai_provider.ListModels(ctx, newOpenAIClient(apiKey, baseURL), "")
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	c := openai.DefaultConfig(apiKey)
	c.BaseURL = baseURL
	return openai.NewClientWithConfig(c)
}

func isLocal(name string) bool {
	return name == "ollama" || name == "lm_studio"
}
