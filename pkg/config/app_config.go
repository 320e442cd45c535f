package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDirName     = "bpmnbot"
	configFileName = "config.yaml"
)

type AppConfig struct {
	General    GeneralConfig             `yaml:"general"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Chat       ChatConfig                `yaml:"chat"`
	Generation GenerationConfig          `yaml:"generation"`
	Output     OutputConfig              `yaml:"output"`
	Viewer     ViewerConfig              `yaml:"viewer"`
	Studio     StudioConfig              `yaml:"studio"`
	Telegram   TelegramConfig            `yaml:"telegram"`
	Log        LogConfig                 `yaml:"log"`
}

type GeneralConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	Language        string `yaml:"language"` // "es" | "en"
}

type ProviderConfig map[string]string

// ChatConfig controls the listening phase of the conversation.
type ChatConfig struct {
	Keyword     string  `yaml:"keyword"`
	Temperature float32 `yaml:"temperature"`
}

// GenerationConfig controls the BPMN generation call.
type GenerationConfig struct {
	Model       string  `yaml:"model"`
	MaxTokens   int32   `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	MaxAttempts int     `yaml:"max_attempts"`
}

type OutputConfig struct {
	Dir        string `yaml:"dir"`
	FileName   string `yaml:"file_name"`
	PerSession bool   `yaml:"per_session"`
	WriteHTML  bool   `yaml:"write_html"`
}

type ViewerConfig struct {
	BpmnJSVersion string `yaml:"bpmn_js_version"`
	CDN           string `yaml:"cdn"`
	Height        int    `yaml:"height"`
	MinWidth      int    `yaml:"min_width"`
}

type StudioConfig struct {
	Port            int           `yaml:"port"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
	RatePerMinute   int           `yaml:"rate_per_minute"`
	Store           StoreConfig   `yaml:"store"`
}

// StoreConfig selects the session backend.
type StoreConfig struct {
	Driver     string `yaml:"driver"` // "memory" | "sqlite" | "redis"
	SQLitePath string `yaml:"sqlite_path"`
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

var (
	dirMu         sync.RWMutex
	customConfDir string
)

// SetConfigDir overrides the configuration directory (used for testing)
func SetConfigDir(dir string) {
	dirMu.Lock()
	defer dirMu.Unlock()
	customConfDir = dir
}

func GetConfigDir() (string, error) {
	dirMu.RLock()
	custom := customConfDir
	dirMu.RUnlock()
	if custom != "" {
		return custom, nil
	}
	if env := os.Getenv("BPMNBOT_CONFIG_DIR"); env != "" {
		return env, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appDirName), nil
}

func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// GetDataDir returns the directory used for session databases and logs.
func GetDataDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

func LoadAppConfig() (*AppConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadAppConfigFrom(path)
}

// LoadAppConfigFrom reads the config at path. A missing file yields defaults.
func LoadAppConfigFrom(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &AppConfig{}
		cfg.ApplyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

func SaveAppConfig(cfg *AppConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// provider keys live in this file
	return os.WriteFile(path, data, 0600)
}
