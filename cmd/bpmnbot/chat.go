package bpmnbot

import (
	"flag"
	"fmt"
	"os"

	"github.com/schardosin/bpmnbot/pkg/launcher"
	"golang.org/x/term"
)

func handleChatCommand(args []string) error {
	chatCmd := flag.NewFlagSet("chat", flag.ExitOnError)
	providerName := chatCmd.String("provider", "", "LLM provider (default from config: cohere)")
	modelName := chatCmd.String("model", "", "Model name")
	lang := chatCmd.String("lang", "", "Conversation language: es or en")
	apiKey := chatCmd.String("key", "", "API key for this conversation")
	outDir := chatCmd.String("out", "", "Directory for the generated files")
	open := chatCmd.Bool("open", false, "Open the diagram in a browser window when done")
	verbose := chatCmd.Bool("verbose", false, "Enable debug logging")

	if err := chatCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	rt, err := loadRuntime(runtimeOptions{
		Provider:  *providerName,
		Model:     *modelName,
		Language:  *lang,
		OutDir:    *outDir,
		Verbose:   *verbose,
		LogToFile: true,
	})
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	return launcher.RunConsole(ctx, &launcher.ConsoleConfig{
		Bot:         rt.bot,
		Language:    rt.cfg.General.Language,
		APIKey:      *apiKey,
		Interactive: interactive,
		OpenViewer:  *open,
		Logger:      rt.logger,
	})
}
