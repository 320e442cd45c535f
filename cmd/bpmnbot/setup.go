package bpmnbot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/provider"
	"github.com/schardosin/bpmnbot/pkg/ui"
)

const skipModel = "(keep the provider default)"

var languages = map[string]string{
	"Español": "es",
	"English": "en",
}

func handleSetupCommand() error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return err
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]config.ProviderConfig)
	}

	byDisplay := make(map[string]string)
	var options []string
	for _, id := range provider.GetProviderIDs() {
		name := provider.GetProviderDisplayName(id)
		byDisplay[name] = id
		options = append(options, name)
	}

	choice, err := ui.ReadSelection(options, "Select a provider to configure")
	if err != nil {
		return err
	}
	selected := byDisplay[choice]
	fmt.Printf("Configuring %s...\n", choice)

	if cfg.Providers[selected] == nil {
		cfg.Providers[selected] = make(config.ProviderConfig)
	}
	if err := promptProviderFields(cfg.Providers[selected], selected); err != nil {
		return err
	}

	if selected != cfg.General.DefaultProvider {
		cfg.General.DefaultModel = ""
	}
	cfg.General.DefaultProvider = selected
	fmt.Printf("Set %s as default provider.\n", choice)

	config.SetupAllProviderEnv(cfg)
	if model, err := selectModel(cfg, selected); err != nil {
		fmt.Printf("Warning: Failed to fetch models: %v\n", err)
	} else if model != "" {
		cfg.General.DefaultModel = model
		fmt.Printf("Selected model: %s\n", model)
	}

	langChoice, err := ui.ReadSelection(sortedKeys(languages), "Conversation language")
	if err != nil {
		return err
	}
	cfg.General.Language = languages[langChoice]

	if err := config.SaveAppConfig(cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		return err
	}

	fmt.Println("Configuration saved successfully!")
	return nil
}

// promptProviderFields asks for every setting the provider reads. Empty
// answers keep the current value.
func promptProviderFields(providerCfg config.ProviderConfig, providerID string) error {
	keys := make([]string, 0, len(config.ProviderEnvMapping[providerID]))
	for key := range config.ProviderEnvMapping[providerID] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		title := fmt.Sprintf("Enter %s %s", provider.GetProviderDisplayName(providerID), strings.ReplaceAll(key, "_", " "))
		if providerCfg[key] != "" {
			title += " (leave empty to keep current)"
		}
		value, err := ui.ReadSecret(title)
		if err != nil {
			return err
		}
		if value = strings.TrimSpace(value); value != "" {
			providerCfg[key] = value
		}
	}
	return nil
}

func selectModel(cfg *config.AppConfig, providerID string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var models []string
	err := ui.RunWithSpinner("Fetching available models...", true, func() error {
		var err error
		models, err = provider.ListModels(ctx, providerID, cfg)
		return err
	})
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		fmt.Println("No models found.")
		return "", nil
	}

	choice, err := ui.ReadSelection(append([]string{skipModel}, models...), "Select a default model")
	if err != nil || choice == skipModel {
		return "", err
	}
	return choice, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
