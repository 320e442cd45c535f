package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorBot   = lipgloss.Color("63")  // Blueish
	colorUser  = lipgloss.Color("214") // Orange
	colorInfo  = lipgloss.Color("86")  // Cyan
	colorMuted = lipgloss.Color("244")

	botLabelStyle  = lipgloss.NewStyle().Foreground(colorBot).Bold(true)
	userLabelStyle = lipgloss.NewStyle().Foreground(colorUser).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(colorInfo).Italic(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
)

// BotLabel renders the speaker prefix for assistant messages.
func BotLabel(name string) string {
	return botLabelStyle.Render(name + ":")
}

// UserLabel renders the speaker prefix for the user prompt.
func UserLabel(name string) string {
	return userLabelStyle.Render(name + ":")
}

// RenderNotice renders a transient message that is not part of the conversation.
func RenderNotice(text string) string {
	return noticeStyle.Render("ℹ " + text)
}

func Muted(text string) string {
	return mutedStyle.Render(text)
}

// RenderBox renders a titled box of key/value rows.
func RenderBox(title string, rows [][2]string) string {
	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBot).
		Padding(0, 2).
		Width(64)

	titleStyle := lipgloss.NewStyle().
		Foreground(colorInfo).
		Bold(true)

	keyStyle := lipgloss.NewStyle().
		Foreground(colorMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	var content strings.Builder
	content.WriteString(titleStyle.Render(title))
	if len(rows) > 0 {
		content.WriteString("\n\n")
	}
	for _, row := range rows {
		val := row[1]
		if len(val) > 200 {
			val = val[:197] + "..."
		}
		content.WriteString(fmt.Sprintf("%s: %s\n", keyStyle.Render(row[0]), valueStyle.Render(val)))
	}

	return boxStyle.Render(strings.TrimSpace(content.String())) + "\n"
}
