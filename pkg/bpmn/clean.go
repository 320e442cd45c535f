// Package bpmn post-processes the BPMN 2.0 XML returned by the model.
package bpmn

import (
	"regexp"
	"strings"
)

// rootOpen matches the opening tag of the definitions root with any
// namespace prefix, e.g. <definitions ...>, <bpmn:definitions ...>.
var rootOpen = regexp.MustCompile(`<(?:([A-Za-z_][\w.\-]*):)?definitions[\s>/]`)

// Clean strips everything around the XML document the model may have added:
// surrounding whitespace, markdown fences and leading or trailing prose.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	if fenced, ok := extractFenced(text); ok {
		text = fenced
	}

	start := strings.Index(text, "<?xml")
	if loc := rootOpen.FindStringIndex(text); loc != nil && (start == -1 || loc[0] < start) {
		start = loc[0]
	}
	if start > 0 {
		text = text[start:]
	}

	if closing, ok := closingTag(text); ok {
		if end := strings.LastIndex(text, closing); end != -1 {
			text = text[:end+len(closing)]
		}
	}

	return strings.TrimSpace(text)
}

// extractFenced returns the body of the first ``` block, tolerating a
// missing closing fence (truncated output).
func extractFenced(text string) (string, bool) {
	const fence = "```"
	startIdx := strings.Index(text, fence)
	if startIdx == -1 {
		return "", false
	}
	remaining := text[startIdx+len(fence):]
	// skip the info string (```xml)
	if nl := strings.IndexByte(remaining, '\n'); nl != -1 {
		remaining = remaining[nl+1:]
	} else {
		return "", false
	}
	if endIdx := strings.Index(remaining, fence); endIdx != -1 {
		remaining = remaining[:endIdx]
	}
	return strings.TrimSpace(remaining), true
}

// closingTag returns the closing tag matching the root definitions element.
func closingTag(text string) (string, bool) {
	m := rootOpen.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return "</" + m[1] + ":definitions>", true
	}
	return "</definitions>", true
}

// EnsureClosed appends the closing root tag when the document opens a
// definitions element but does not end with its closing tag, which happens
// when the model runs out of tokens.
func EnsureClosed(xmlText string) string {
	closing, ok := closingTag(xmlText)
	if !ok {
		return xmlText
	}
	if strings.HasSuffix(strings.TrimSpace(xmlText), closing) {
		return xmlText
	}
	return xmlText + "\n" + closing
}

// Normalize runs Clean followed by EnsureClosed.
func Normalize(raw string) string {
	return EnsureClosed(Clean(raw))
}
