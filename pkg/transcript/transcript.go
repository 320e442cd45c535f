// Package transcript exports a conversation as Markdown, HTML or PDF.
package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	pdf "github.com/stephenafamo/goldmark-pdf"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// ParseFormat accepts the format names used by the CLI and the API.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown transcript format: %s", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Input is what gets exported.
type Input struct {
	Title        string
	Conversation *conversation.Conversation
	// XML is the generated diagram, if any.
	XML string
}

var speakers = map[string]map[conversation.Role]string{
	"es": {conversation.RoleUser: "Usuario", conversation.RoleChatbot: "Asistente"},
	"en": {conversation.RoleUser: "User", conversation.RoleChatbot: "Assistant"},
}

// Markdown renders the conversation with one section per message.
func Markdown(in Input) string {
	var sb strings.Builder

	title := in.Title
	if title == "" {
		title = "Chatbot BPMN Generator"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	if in.Conversation != nil {
		names := speakers["es"]
		if strings.EqualFold(in.Conversation.Language, "en") {
			names = speakers["en"]
		}
		for _, m := range in.Conversation.Messages {
			who := names[m.Role]
			if m.Source != "" {
				who += " (" + m.Source + ")"
			}
			fmt.Fprintf(&sb, "**%s** · %s\n\n", who, m.Time.Format("2006-01-02 15:04"))
			sb.WriteString(strings.TrimSpace(m.Text))
			sb.WriteString("\n\n")
		}
	}

	if in.XML != "" {
		sb.WriteString("## BPMN\n\n```xml\n")
		sb.WriteString(strings.TrimSpace(in.XML))
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

var htmlPage = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; max-width: 900px; margin: 2em auto; line-height: 1.5; }
    pre { background: #f6f8fa; padding: 1em; overflow-x: auto; }
  </style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the Markdown transcript to a standalone page.
func HTML(in Input) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(in)), &body); err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}

	var out bytes.Buffer
	err := htmlPage.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: in.Title, Body: template.HTML(body.String())})
	if err != nil {
		return "", fmt.Errorf("failed to render transcript: %w", err)
	}
	return out.String(), nil
}

// PDF renders the Markdown transcript to a PDF document.
func PDF(in Input) ([]byte, error) {
	md := goldmark.New(goldmark.WithRenderer(pdf.New()))

	var out bytes.Buffer
	if err := md.Convert([]byte(Markdown(in)), &out); err != nil {
		return nil, fmt.Errorf("failed to render transcript PDF: %w", err)
	}
	return out.Bytes(), nil
}

// Render dispatches on format.
func Render(in Input, f Format) ([]byte, error) {
	switch f {
	case FormatHTML:
		s, err := HTML(in)
		return []byte(s), err
	case FormatPDF:
		return PDF(in)
	default:
		return []byte(Markdown(in)), nil
	}
}
