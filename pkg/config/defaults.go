package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultProvider      = "cohere"
	DefaultModel         = "command-r-plus"
	DefaultLanguage      = "es"
	DefaultKeyword       = "terminar"
	DefaultOutputFile    = "bpmn_output.xml"
	DefaultBpmnJSVersion = "11.5.0"
	DefaultCDN           = "https://unpkg.com"
	DefaultStudioPort    = 9393
)

// ApplyDefaults fills every zero value with the documented default.
func (c *AppConfig) ApplyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}

	if c.General.DefaultProvider == "" {
		c.General.DefaultProvider = DefaultProvider
	}
	if c.General.DefaultModel == "" && c.General.DefaultProvider == DefaultProvider {
		c.General.DefaultModel = DefaultModel
	}
	c.General.Language = strings.ToLower(strings.TrimSpace(c.General.Language))
	if c.General.Language != "en" {
		c.General.Language = DefaultLanguage
	}

	c.Chat.Keyword = strings.ToLower(strings.TrimSpace(c.Chat.Keyword))
	if c.Chat.Keyword == "" {
		c.Chat.Keyword = DefaultKeyword
	}

	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 3000
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.4
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
	if c.Output.FileName == "" {
		c.Output.FileName = DefaultOutputFile
	}

	if c.Viewer.BpmnJSVersion == "" {
		c.Viewer.BpmnJSVersion = DefaultBpmnJSVersion
	}
	if c.Viewer.CDN == "" {
		c.Viewer.CDN = DefaultCDN
	}
	c.Viewer.CDN = strings.TrimRight(c.Viewer.CDN, "/")
	if c.Viewer.Height <= 0 {
		c.Viewer.Height = 600
	}
	if c.Viewer.MinWidth <= 0 {
		c.Viewer.MinWidth = 3000
	}

	if c.Studio.Port <= 0 {
		c.Studio.Port = DefaultStudioPort
	}
	if c.Studio.SessionTTL <= 0 {
		c.Studio.SessionTTL = 24 * time.Hour
	}
	if c.Studio.CleanupSchedule == "" {
		c.Studio.CleanupSchedule = "@every 10m"
	}
	if c.Studio.RatePerMinute <= 0 {
		c.Studio.RatePerMinute = 20
	}
	if c.Studio.Store.Driver == "" {
		c.Studio.Store.Driver = "memory"
	}
	if c.Studio.Store.RedisAddr == "" {
		c.Studio.Store.RedisAddr = "localhost:6379"
	}
	if c.Studio.Store.SQLitePath == "" {
		if dir, err := GetDataDir(); err == nil {
			c.Studio.Store.SQLitePath = filepath.Join(dir, "sessions.db")
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// GenerationModel returns the model used for BPMN generation, falling back
// to the chat model.
func (c *AppConfig) GenerationModel() string {
	if c.Generation.Model != "" {
		return c.Generation.Model
	}
	return c.General.DefaultModel
}
