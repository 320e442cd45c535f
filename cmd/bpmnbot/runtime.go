package bpmnbot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/logging"
	"go.uber.org/zap"
)

// runtimeOptions are the flags shared by the commands that talk to a model.
type runtimeOptions struct {
	Provider string
	Model    string
	Language string
	OutDir   string
	OutFile  string
	Store    string
	Verbose  bool
	// LogToFile keeps log lines out of terminal conversations.
	LogToFile bool
}

type appRuntime struct {
	cfg     *config.AppConfig
	cfgPath string
	logger  *zap.Logger
	bot     *chatbot.Bot
}

// loadRuntime loads the config, applies flag overrides and builds the bot.
func loadRuntime(opts runtimeOptions) (*appRuntime, error) {
	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	cfg, err := config.LoadAppConfigFrom(cfgPath)
	if err != nil {
		// Just warn, don't fail, maybe first run
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		cfg = &config.AppConfig{}
		cfg.ApplyDefaults()
	}
	applyOverrides(cfg, opts)
	config.SetupAllProviderEnv(cfg)

	logOpts := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Verbose: opts.Verbose}
	if opts.LogToFile && logOpts.File == "" {
		if dir, err := config.GetDataDir(); err == nil {
			logOpts.File = filepath.Join(dir, "bpmnbot.log")
		}
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	return &appRuntime{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		bot:     chatbot.New(cfg, chatbot.WithLogger(logger)),
	}, nil
}

func applyOverrides(cfg *config.AppConfig, opts runtimeOptions) {
	if opts.Provider != "" && opts.Provider != cfg.General.DefaultProvider {
		cfg.General.DefaultProvider = opts.Provider
		// the configured model belongs to the old provider
		cfg.General.DefaultModel = ""
	}
	if opts.Model != "" {
		cfg.General.DefaultModel = opts.Model
	}
	if opts.Language != "" {
		cfg.General.Language = opts.Language
	}
	if opts.OutDir != "" {
		cfg.Output.Dir = opts.OutDir
	}
	if opts.OutFile != "" {
		cfg.Output.Dir = filepath.Dir(opts.OutFile)
		cfg.Output.FileName = filepath.Base(opts.OutFile)
	}
	if opts.Store != "" {
		cfg.Studio.Store.Driver = opts.Store
	}
	cfg.ApplyDefaults()
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
