package config

import "os"

// ProviderEnvMapping maps provider config keys to environment variable names
// This is the single source of truth for how config keys map to env vars
var ProviderEnvMapping = map[string]map[string]string{
	"cohere": {
		"api_key": "COHERE_API_KEY",
	},
	"anthropic": {
		"api_key": "ANTHROPIC_API_KEY",
	},
	"gemini": {
		"api_key": "GOOGLE_API_KEY",
	},
	"openai": {
		"api_key": "OPENAI_API_KEY",
	},
	"openrouter": {
		"api_key": "OPENROUTER_API_KEY",
	},
	"xai": {
		"api_key": "XAI_API_KEY",
	},
	"groq": {
		"api_key": "GROQ_API_KEY",
	},
	"ollama": {
		"base_url": "OLLAMA_BASE_URL",
	},
}

// SetupProviderEnv sets environment variables from config for a specific provider
func SetupProviderEnv(providerName string, providerCfg ProviderConfig) {
	if mapping, ok := ProviderEnvMapping[providerName]; ok {
		for cfgKey, envKey := range mapping {
			if val, ok := providerCfg[cfgKey]; ok && val != "" {
				os.Setenv(envKey, val)
			}
		}
	}
}

// SetupAllProviderEnv sets environment variables for all configured providers
func SetupAllProviderEnv(appCfg *AppConfig) {
	if appCfg == nil || appCfg.Providers == nil {
		return
	}
	for providerName, providerCfg := range appCfg.Providers {
		SetupProviderEnv(providerName, providerCfg)
	}
}

// ProviderValue resolves a provider setting. The environment wins over the
// config file.
func ProviderValue(cfg *AppConfig, providerName, key string) string {
	if mapping, ok := ProviderEnvMapping[providerName]; ok {
		if envKey, ok := mapping[key]; ok {
			if v := os.Getenv(envKey); v != "" {
				return v
			}
		}
	}
	if cfg == nil || cfg.Providers == nil {
		return ""
	}
	return cfg.Providers[providerName][key]
}

// HasAPIKey reports whether an API key is available for the provider without
// a per-session override. Local providers never need one.
func HasAPIKey(cfg *AppConfig, providerName string) bool {
	switch providerName {
	case "ollama", "lm_studio":
		return true
	}
	return ProviderValue(cfg, providerName, "api_key") != ""
}
