package bpmnbot

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the CLI
func Execute() error {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		printUsage()
		if len(os.Args) < 2 {
			return fmt.Errorf("no command provided")
		}
		return nil
	}

	command := os.Args[1]
	switch command {
	case "studio":
		return handleStudioCommand(os.Args[2:])
	case "chat":
		return handleChatCommand(os.Args[2:])
	case "generate":
		return handleGenerateCommand(os.Args[2:])
	case "render":
		return handleRenderCommand(os.Args[2:])
	case "view":
		return handleViewCommand(os.Args[2:])
	case "telegram":
		return handleTelegramCommand(os.Args[2:])
	case "setup":
		return handleSetupCommand()
	case "config":
		return handleConfigCommand(os.Args[2:])
	case "version", "--version", "-v":
		printVersion()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println("usage: bpmnbot [-h] {studio,chat,generate,render,view,telegram,setup,config,version} ...")
	fmt.Println("")
	fmt.Println("Describe a business process in a conversation and get a BPMN 2.0 diagram.")
	fmt.Println("")
	fmt.Println("positional arguments:")
	fmt.Println("    studio              Run the web studio")
	fmt.Println("    chat                Chat in the terminal until TERMINAR")
	fmt.Println("    generate            Generate a diagram from a description file")
	fmt.Println("    render              Render a BPMN file to PNG, SVG or HTML")
	fmt.Println("    view                Open a BPMN file in a browser window")
	fmt.Println("    telegram            Run the Telegram bot")
	fmt.Println("    setup               Run interactive setup")
	fmt.Println("    config              Manage configuration")
	fmt.Println("    version             Print version information")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
}
