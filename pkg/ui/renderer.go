package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// SmartRender renders markdown with glamour. Bare XML is wrapped in a code
// block so it gets syntax highlighting.
func SmartRender(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">") {
		input = fmt.Sprintf("```xml\n%s\n```", trimmed)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return input
	}

	out, err := renderer.Render(input)
	if err != nil {
		return input
	}
	return out
}
