package bpmnbot

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schardosin/bpmnbot/pkg/bpmn"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/snapshot"
	"github.com/schardosin/bpmnbot/pkg/viewer"
)

// viewerPage loads a BPMN file and wraps it in the viewer page.
func viewerPage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	xmlText := bpmn.Normalize(string(data))

	cfg, err := config.LoadAppConfig()
	if err != nil {
		cfg = &config.AppConfig{}
		cfg.ApplyDefaults()
	}
	catalog := prompts.For(cfg.General.Language)
	return viewer.Render(xmlText, viewer.OptionsFromConfig(cfg.Viewer, catalog.ViewerError))
}

func handleRenderCommand(args []string) error {
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	output := renderCmd.String("o", "", "Output file: .png, .svg or .html (default: <input>.png)")
	browser := renderCmd.String("browser", "", "Path to a Chrome/Chromium binary")
	width := renderCmd.Int("width", 1600, "Viewport width")
	height := renderCmd.Int("height", 1000, "Viewport height")
	timeout := renderCmd.Duration("timeout", 30*time.Second, "Rendering timeout")

	if err := renderCmd.Parse(reorderArgs(args)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if renderCmd.NArg() != 1 {
		fmt.Println("usage: bpmnbot render [options] <file.xml>")
		renderCmd.PrintDefaults()
		return fmt.Errorf("a BPMN file is required")
	}
	input := renderCmd.Arg(0)

	out := *output
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".png"
	}

	page, err := viewerPage(input)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	opts := snapshot.Options{Bin: *browser, Timeout: *timeout, Width: *width, Height: *height}

	var data []byte
	switch strings.ToLower(filepath.Ext(out)) {
	case ".html":
		data = []byte(page)
	case ".svg":
		svg, err := snapshot.SVG(ctx, page, opts)
		if err != nil {
			return err
		}
		data = []byte(svg)
	case ".png":
		data, err = snapshot.PNG(ctx, page, opts)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(out))
	}

	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Println(out)
	return nil
}

func handleViewCommand(args []string) error {
	viewCmd := flag.NewFlagSet("view", flag.ExitOnError)
	browser := viewCmd.String("browser", "", "Path to a Chrome/Chromium binary")

	if err := viewCmd.Parse(reorderArgs(args)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if viewCmd.NArg() != 1 {
		fmt.Println("usage: bpmnbot view [--browser PATH] <file.xml>")
		return fmt.Errorf("a BPMN file is required")
	}

	page, err := viewerPage(viewCmd.Arg(0))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println("Press Ctrl+C to close the viewer")
	return snapshot.Show(ctx, page, snapshot.Options{Bin: *browser})
}
