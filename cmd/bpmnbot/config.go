package bpmnbot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schardosin/bpmnbot/pkg/config"
	"gopkg.in/yaml.v3"
)

func handleConfigCommand(args []string) error {
	if len(args) < 1 || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage()
		return nil
	}

	switch args[0] {
	case "edit":
		return handleConfigEdit()
	case "show":
		return handleConfigShow()
	case "directory":
		return handleConfigDirectory()
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

func printConfigUsage() {
	fmt.Println("usage: bpmnbot config [-h] {edit,show,directory} ...")
	fmt.Println("")
	fmt.Println("positional arguments:")
	fmt.Println("  {edit,show,directory}")
	fmt.Println("                        Configuration management commands")
	fmt.Println("    edit                Open config.yaml in default editor")
	fmt.Println("    show                Print config.yaml with API keys masked")
	fmt.Println("    directory           Print the configuration directory path")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
}

func handleConfigEdit() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return openInEditor(path)
}

func handleConfigShow() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("Config file does not exist. Run 'bpmnbot setup' to create one.")
		return nil
	}

	cfg, err := config.LoadAppConfigFrom(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	data, err := yaml.Marshal(maskSecrets(cfg))
	if err != nil {
		return err
	}
	fmt.Println(path)
	fmt.Println(string(data))
	return nil
}

// maskSecrets returns a copy of cfg with provider keys and the bot token
// reduced to their last four characters.
func maskSecrets(cfg *config.AppConfig) *config.AppConfig {
	masked := *cfg
	masked.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
	for name, fields := range cfg.Providers {
		copied := make(config.ProviderConfig, len(fields))
		for k, v := range fields {
			if k == "base_url" {
				copied[k] = v
				continue
			}
			copied[k] = mask(v)
		}
		masked.Providers[name] = copied
	}
	masked.Telegram.Token = mask(cfg.Telegram.Token)
	return &masked
}

func mask(v string) string {
	switch {
	case v == "":
		return ""
	case len(v) > 4:
		return "****" + v[len(v)-4:]
	default:
		return "****"
	}
}

func handleConfigDirectory() error {
	dir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	fmt.Println(dir)
	return nil
}
