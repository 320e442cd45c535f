package bpmnbot

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Version information
const (
	Version = "1.0.0"
	Name    = "BPMN Bot"
	GitHub  = "https://github.com/schardosin/bpmnbot"
)

var asciiLogo = `
    __                              __          __ 
   / /_  ____  ____ ___  ____     / /_  ____  / /_
  / __ \/ __ \/ __ ` + "`" + `__ \/ __ \   / __ \/ __ \/ __/
 / /_/ / /_/ / / / / / / / / /  / /_/ / /_/ / /_  
/_.___/ .___/_/ /_/ /_/_/ /_/  /_.___/\____/\__/  
     /_/                                           
`

func printVersion() {
	logoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("63")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	linkStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Underline(true)

	fmt.Println(logoStyle.Render(asciiLogo))
	fmt.Println()

	fmt.Println(labelStyle.Render(Name))
	fmt.Printf("%s %s\n", labelStyle.Render("Version:"), valueStyle.Render(Version))
	fmt.Printf("%s %s\n", labelStyle.Render("GitHub:"), linkStyle.Render(GitHub))
	fmt.Println()
}
