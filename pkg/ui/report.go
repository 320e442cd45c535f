package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schardosin/bpmnbot/pkg/bpmn"
)

var (
	countStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Width(12).
			Align(lipgloss.Center)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// RenderReport renders a summary card for a generated diagram: one box per
// element kind and a status line.
func RenderReport(path string, r bpmn.Report) string {
	cell := func(label string, n int, color lipgloss.Color) string {
		return countStyle.BorderForeground(color).Render(fmt.Sprintf("%d\n%s", n, label))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("tasks", r.Tasks, colorBot),
		cell("events", r.Events, colorInfo),
		cell("gateways", r.Gateways, colorUser),
		cell("flows", r.Flows, colorMuted),
	)

	status := okStyle.Render("✓ " + r.Summary())
	if r.NeedsRepair() {
		status = failStyle.Render("✕ " + strings.Join(r.Problems(), "; "))
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(row)
	b.WriteString("\n")
	b.WriteString(status)
	b.WriteString("\n")
	if path != "" {
		b.WriteString(Muted(path))
		b.WriteString("\n")
	}
	return b.String()
}
