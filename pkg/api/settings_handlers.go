package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/provider"
	"go.uber.org/zap"
)

// GeneralSettings represents the general app settings
type GeneralSettings struct {
	DefaultProvider            string `json:"default_provider"`
	DefaultProviderDisplayName string `json:"default_provider_display_name"`
	DefaultModel               string `json:"default_model"`
	Language                   string `json:"language"`
	Keyword                    string `json:"keyword"`
	GenerationModel            string `json:"generation_model"`
	MaxAttempts                int    `json:"max_attempts"`
}

// ProviderSettings represents a provider's configuration (masked)
type ProviderSettings struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Configured  bool              `json:"configured"`
	Fields      map[string]string `json:"fields"` // Masked values for display
}

// AppSettingsResponse is the response for GET /api/settings
type AppSettingsResponse struct {
	General   GeneralSettings    `json:"general"`
	Providers []ProviderSettings `json:"providers"`
}

// UpdateAppSettingsRequest is the request for PUT /api/settings
type UpdateAppSettingsRequest struct {
	General   *GeneralSettings             `json:"general,omitempty"`
	Providers map[string]map[string]string `json:"providers,omitempty"`
}

// SetupStatusResponse tells the UI whether a provider still needs a key.
type SetupStatusResponse struct {
	SetupRequired       bool     `json:"setupRequired"`
	HasDefaultProvider  bool     `json:"hasDefaultProvider"`
	HasDefaultModel     bool     `json:"hasDefaultModel"`
	ConfiguredProviders []string `json:"configuredProviders"`
}

func maskValue(val string) string {
	if len(val) > 4 {
		return "****" + val[len(val)-4:]
	}
	return "****"
}

// isMaskedValue checks if a value is a masked placeholder
func isMaskedValue(val string) bool {
	return strings.HasPrefix(val, "****")
}

func providerFields(cfg *config.AppConfig, name string) (map[string]string, bool) {
	fields := make(map[string]string)
	configured := false
	providerCfg := cfg.Providers[name]
	for cfgKey := range config.ProviderEnvMapping[name] {
		if val := providerCfg[cfgKey]; val != "" {
			fields[cfgKey] = maskValue(val)
			configured = true
		} else {
			fields[cfgKey] = ""
		}
	}
	return fields, configured
}

// GetSettingsHandler handles GET /api/settings
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config: "+err.Error())
		return
	}

	providers := []ProviderSettings{}
	for _, name := range provider.GetProviderIDs() {
		fields, configured := providerFields(cfg, name)
		providers = append(providers, ProviderSettings{
			Name:        name,
			DisplayName: provider.GetProviderDisplayName(name),
			Configured:  configured,
			Fields:      fields,
		})
	}

	writeJSON(w, http.StatusOK, AppSettingsResponse{
		General: GeneralSettings{
			DefaultProvider:            cfg.General.DefaultProvider,
			DefaultProviderDisplayName: provider.GetProviderDisplayName(provider.NormalizeName(cfg.General.DefaultProvider)),
			DefaultModel:               cfg.General.DefaultModel,
			Language:                   cfg.General.Language,
			Keyword:                    cfg.Chat.Keyword,
			GenerationModel:            cfg.Generation.Model,
			MaxAttempts:                cfg.Generation.MaxAttempts,
		},
		Providers: providers,
	})
}

// UpdateSettingsHandler handles PUT /api/settings. The new configuration is
// saved and applied to the running bot.
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateAppSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config: "+err.Error())
		return
	}

	if req.General != nil {
		if req.General.DefaultProvider != "" {
			name := provider.NormalizeName(req.General.DefaultProvider)
			if _, ok := provider.ProviderDisplayNames[name]; !ok {
				writeError(w, http.StatusBadRequest, "Unknown provider: "+req.General.DefaultProvider)
				return
			}
			cfg.General.DefaultProvider = name
		}
		cfg.General.DefaultModel = req.General.DefaultModel
		if req.General.Language != "" {
			cfg.General.Language = req.General.Language
		}
		if req.General.Keyword != "" {
			cfg.Chat.Keyword = req.General.Keyword
		}
		cfg.Generation.Model = req.General.GenerationModel
		if req.General.MaxAttempts > 0 {
			cfg.Generation.MaxAttempts = req.General.MaxAttempts
		}
	}

	for providerName, fields := range req.Providers {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]config.ProviderConfig)
		}
		if cfg.Providers[providerName] == nil {
			cfg.Providers[providerName] = make(config.ProviderConfig)
		}
		for key, value := range fields {
			// Only update if value is not masked placeholder
			if value != "" && !isMaskedValue(value) {
				cfg.Providers[providerName][key] = value
			}
		}
	}

	if err := config.SaveAppConfig(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save config: "+err.Error())
		return
	}

	config.SetupAllProviderEnv(cfg)
	cfg.ApplyDefaults()
	s.bot.SetConfig(cfg)

	s.logger.Info("settings updated",
		zap.String("provider", cfg.General.DefaultProvider),
		zap.String("model", cfg.General.DefaultModel))

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSetupStatusHandler handles GET /api/settings/status
func (s *Server) GetSetupStatusHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.bot.Config()

	configured := []string{}
	for _, name := range provider.GetProviderIDs() {
		if _, ok := providerFields(cfg, name); ok {
			configured = append(configured, name)
		}
	}
	sort.Strings(configured)

	hasKey := config.HasAPIKey(cfg, provider.NormalizeName(cfg.General.DefaultProvider))
	writeJSON(w, http.StatusOK, SetupStatusResponse{
		// a key typed into a session still works without setup
		SetupRequired:       !hasKey,
		HasDefaultProvider:  cfg.General.DefaultProvider != "",
		HasDefaultModel:     cfg.General.DefaultModel != "",
		ConfiguredProviders: configured,
	})
}

// ListProviderModelsHandler handles GET /api/providers/{name}/models
func (s *Server) ListProviderModelsHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	models, err := provider.ListModels(r.Context(), name, s.bot.Config())
	if errors.Is(err, provider.ErrNoAPIKey) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("failed to list models", zap.String("provider", name), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to fetch models: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider": provider.NormalizeName(name),
		"models":   models,
	})
}
