package bpmnbot

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schardosin/bpmnbot/pkg/importer"
	"github.com/schardosin/bpmnbot/pkg/ui"
)

func handleGenerateCommand(args []string) error {
	genCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	providerName := genCmd.String("provider", "", "LLM provider (default from config: cohere)")
	modelName := genCmd.String("model", "", "Model name")
	lang := genCmd.String("lang", "", "Prompt language: es or en")
	apiKey := genCmd.String("key", "", "API key")
	output := genCmd.String("o", "", "Output file (default from config: bpmn_output.xml)")
	printXML := genCmd.Bool("print", false, "Also print the XML to stdout")
	verbose := genCmd.Bool("verbose", false, "Enable debug logging")

	if err := genCmd.Parse(reorderArgs(args)); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if genCmd.NArg() != 1 {
		fmt.Println("usage: bpmnbot generate [options] <file|url|->")
		genCmd.PrintDefaults()
		return fmt.Errorf("a description source is required")
	}

	rt, err := loadRuntime(runtimeOptions{
		Provider:  *providerName,
		Model:     *modelName,
		Language:  *lang,
		OutFile:   *output,
		Verbose:   *verbose,
		LogToFile: true,
	})
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	description, err := readDescription(ctx, genCmd.Arg(0), os.Stdin)
	if err != nil {
		return err
	}

	result, err := rt.bot.Generate(ctx, "cli", rt.cfg.General.Language, description, *apiKey)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if *printXML {
		fmt.Println(result.XML)
	}
	fmt.Fprint(os.Stderr, ui.RenderReport(result.Path, result.Report))
	for _, w := range result.Warnings {
		fmt.Fprintln(os.Stderr, ui.RenderWarning(w))
	}
	return nil
}

// readDescription loads the process description from a file, a URL or
// stdin ("-").
func readDescription(ctx context.Context, source string, stdin io.Reader) (string, error) {
	var text string
	switch {
	case source == "-":
		data, err := io.ReadAll(io.LimitReader(stdin, importer.MaxSize))
		if err != nil {
			return "", err
		}
		text = string(data)
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		doc, err := importer.New(nil).FromURL(ctx, source)
		if err != nil {
			return "", err
		}
		text = doc.Text
	default:
		doc, err := importer.FromFile(source)
		if err != nil {
			return "", err
		}
		text = doc.Text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("the description is empty")
	}
	return text, nil
}

// reorderArgs moves positional arguments after the flags so that
// "generate file.txt -o out.xml" parses.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-" || !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		if !strings.Contains(arg, "=") && i+1 < len(args) && takesValue(arg) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	return append(flags, positional...)
}

func takesValue(flagName string) bool {
	switch strings.TrimLeft(flagName, "-") {
	case "print", "verbose", "open":
		return false
	}
	return true
}
