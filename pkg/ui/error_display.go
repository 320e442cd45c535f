package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	// --- COLORS ---
	colorRed    = lipgloss.Color("196")
	colorOrange = lipgloss.Color("#FFA500")
	colorYellow = lipgloss.Color("226")
	colorWhite  = lipgloss.Color("252")
	colorGrey   = lipgloss.Color("240")

	// --- STYLES ---

	badgeStyle = lipgloss.NewStyle().
			Foreground(colorOrange).
			Bold(true)

	badgeTextStyle = lipgloss.NewStyle().
			Foreground(colorGrey).
			PaddingLeft(1)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRed).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	reasonTextStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	suggestionTextStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	detailTitleStyle = lipgloss.NewStyle().
			Foreground(colorGrey).
			Bold(true)

	detailTextStyle = lipgloss.NewStyle().
			Foreground(colorGrey)
)

// RenderWarning renders a one-line warning about the generated diagram.
func RenderWarning(text string) string {
	badge := badgeStyle.Render("⚠")
	message := badgeTextStyle.Render(text)
	return lipgloss.JoinHorizontal(lipgloss.Left, badge, message)
}

// RenderAttemptsBadge renders how many generation attempts were needed.
func RenderAttemptsBadge(attempts, maxAttempts int, oneLiner string) string {
	badge := badgeStyle.Render(fmt.Sprintf("⟳ %d/%d:", attempts, maxAttempts))
	message := badgeTextStyle.Render(oneLiner)
	return lipgloss.JoinHorizontal(lipgloss.Left, badge, message)
}

// RenderErrorBox renders an error in a red box no wider than the terminal.
// suggestion and details are optional.
func RenderErrorBox(title, reason, suggestion, details string) string {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	// border and padding take four columns
	contentWidth := width - 6

	blocks := []string{headerStyle.Render("✕ " + title)}
	if reason != "" {
		blocks = append(blocks, reasonTextStyle.Width(contentWidth).Render(reason))
	}
	if suggestion != "" {
		blocks = append(blocks, "", suggestionTextStyle.Width(contentWidth).Render("→ "+suggestion))
	}
	if details != "" {
		blocks = append(blocks, "",
			detailTitleStyle.Render("Details:"),
			detailTextStyle.Width(contentWidth).Render(strings.TrimSpace(details)),
		)
	}

	return "\n" + errorBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...)) + "\n"
}
