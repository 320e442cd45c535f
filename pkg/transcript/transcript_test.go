package transcript

import (
	"strings"
	"testing"

	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Input {
	conv := conversation.New("es", "")
	conv.Append(conversation.RoleUser, "El cliente envía un pedido")
	conv.AppendDocument("manual.pdf", "Texto del manual")
	return Input{Title: "Pedido", Conversation: conv, XML: "<definitions/>"}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sample())

	assert.True(t, strings.HasPrefix(md, "# Pedido\n\n"))
	assert.Contains(t, md, "Bienvenido a AUTO CODING!")
	assert.Contains(t, md, "**Usuario** ·")
	assert.Contains(t, md, "**Usuario (manual.pdf)**")
	assert.Contains(t, md, "```xml\n<definitions/>\n```")
}

func TestMarkdownEnglishSpeakers(t *testing.T) {
	conv := conversation.New("en", "")
	conv.Append(conversation.RoleUser, "hello")
	md := Markdown(Input{Conversation: conv})
	assert.Contains(t, md, "**Assistant**")
	assert.Contains(t, md, "**User**")
	assert.Contains(t, md, "# Chatbot BPMN Generator")
}

func TestHTML(t *testing.T) {
	out, err := HTML(sample())
	require.NoError(t, err)
	assert.Contains(t, out, "<title>Pedido</title>")
	assert.Contains(t, out, "<h1>Pedido</h1>")
	assert.Contains(t, out, "&lt;definitions/&gt;")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatMarkdown, false},
		{"Markdown", FormatMarkdown, false},
		{"html", FormatHTML, false},
		{"PDF", FormatPDF, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
