package bpmnbot

import (
	"flag"
	"fmt"

	"github.com/schardosin/bpmnbot/pkg/launcher"
)

func handleStudioCommand(args []string) error {
	studioCmd := flag.NewFlagSet("studio", flag.ExitOnError)
	studioCmd.Usage = printStudioUsage
	port := studioCmd.Int("port", 0, "Port to run the studio server on")
	store := studioCmd.String("store", "", "Session store: memory, sqlite or redis")
	verbose := studioCmd.Bool("verbose", false, "Enable debug logging")

	if err := studioCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	rt, err := loadRuntime(runtimeOptions{Store: *store, Verbose: *verbose})
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	return launcher.RunStudio(ctx, &launcher.StudioConfig{
		Bot:        rt.bot,
		Port:       *port,
		ConfigPath: rt.cfgPath,
		Logger:     rt.logger,
	})
}

func printStudioUsage() {
	fmt.Println("usage: bpmnbot studio [-h] [--port PORT] [--store DRIVER] [--verbose]")
	fmt.Println("")
	fmt.Println("Launch the web studio")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
	fmt.Println("  --port PORT           Port to run the studio server on (default: 9393)")
	fmt.Println("  --store DRIVER        Session store: memory, sqlite or redis")
	fmt.Println("  --verbose             Enable debug logging")
}
