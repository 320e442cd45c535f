package bpmnbot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/schardosin/bpmnbot/pkg/config"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "flags first",
			args: []string{"-o", "out.xml", "desc.txt"},
			want: []string{"-o", "out.xml", "desc.txt"},
		},
		{
			name: "positional first",
			args: []string{"desc.txt", "-o", "out.xml"},
			want: []string{"-o", "out.xml", "desc.txt"},
		},
		{
			name: "bool flag does not swallow the file",
			args: []string{"--print", "desc.txt", "--lang=en"},
			want: []string{"--print", "--lang=en", "desc.txt"},
		},
		{
			name: "stdin marker",
			args: []string{"-", "--verbose"},
			want: []string{"--verbose", "-"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reorderArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("reorderArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestReadDescription(t *testing.T) {
	ctx := context.Background()

	t.Run("stdin", func(t *testing.T) {
		got, err := readDescription(ctx, "-", strings.NewReader("  The clerk files the claim.\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "The clerk files the claim." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "process.txt")
		if err := os.WriteFile(path, []byte("Sales sends the quote."), 0644); err != nil {
			t.Fatal(err)
		}
		got, err := readDescription(ctx, path, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Sales sends the quote." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("empty stdin", func(t *testing.T) {
		if _, err := readDescription(ctx, "-", strings.NewReader(" \n ")); err == nil {
			t.Error("expected an error for an empty description")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readDescription(ctx, filepath.Join(t.TempDir(), "nope.txt"), nil)
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected ErrNotExist, got %v", err)
		}
	})
}

func TestApplyOverrides(t *testing.T) {
	t.Run("provider change clears the model", func(t *testing.T) {
		cfg := &config.AppConfig{}
		cfg.ApplyDefaults()
		applyOverrides(cfg, runtimeOptions{Provider: "openai"})

		if cfg.General.DefaultProvider != "openai" {
			t.Errorf("provider = %q", cfg.General.DefaultProvider)
		}
		if cfg.General.DefaultModel != "" {
			t.Errorf("model = %q, want empty", cfg.General.DefaultModel)
		}
	})

	t.Run("model and language", func(t *testing.T) {
		cfg := &config.AppConfig{}
		applyOverrides(cfg, runtimeOptions{Model: "command-r", Language: "en"})

		if cfg.General.DefaultProvider != config.DefaultProvider {
			t.Errorf("provider = %q", cfg.General.DefaultProvider)
		}
		if cfg.General.DefaultModel != "command-r" {
			t.Errorf("model = %q", cfg.General.DefaultModel)
		}
		if cfg.General.Language != "en" {
			t.Errorf("language = %q", cfg.General.Language)
		}
	})

	t.Run("output file", func(t *testing.T) {
		cfg := &config.AppConfig{}
		applyOverrides(cfg, runtimeOptions{OutFile: filepath.Join("diagrams", "order.xml")})

		if cfg.Output.Dir != "diagrams" || cfg.Output.FileName != "order.xml" {
			t.Errorf("output = %+v", cfg.Output)
		}
	})
}

func TestMaskSecrets(t *testing.T) {
	cfg := &config.AppConfig{
		Providers: map[string]config.ProviderConfig{
			"cohere": {"api_key": "co-1234567890"},
			"ollama": {"base_url": "http://localhost:11434"},
		},
		Telegram: config.TelegramConfig{Token: "abc"},
	}

	masked := maskSecrets(cfg)

	if got := masked.Providers["cohere"]["api_key"]; got != "****7890" {
		t.Errorf("api_key = %q", got)
	}
	if got := masked.Providers["ollama"]["base_url"]; got != "http://localhost:11434" {
		t.Errorf("base_url = %q", got)
	}
	if masked.Telegram.Token != "****" {
		t.Errorf("token = %q", masked.Telegram.Token)
	}
	if cfg.Providers["cohere"]["api_key"] != "co-1234567890" {
		t.Error("input config was modified")
	}
}

func TestEditorCommand(t *testing.T) {
	notFound := func(string) (string, error) { return "", errors.New("not found") }

	t.Run("visual wins", func(t *testing.T) {
		t.Setenv("VISUAL", "code --wait")
		t.Setenv("EDITOR", "vi")
		got, err := editorCommand(notFound)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, []string{"code", "--wait"}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("nothing available", func(t *testing.T) {
		t.Setenv("VISUAL", "")
		t.Setenv("EDITOR", "")
		if _, err := editorCommand(notFound); err == nil {
			t.Error("expected an error")
		}
	})
}
