package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleConversationToDiagram(t *testing.T) {
	bot, dir := newTestBot(t)
	in := strings.NewReader("Orders arrive by mail\nterminar\n")
	var out bytes.Buffer

	err := RunConsole(context.Background(), &ConsoleConfig{
		Bot:      bot,
		Language: "en",
		APIKey:   "secret",
		In:       in,
		Out:      &out,
	})
	if err != nil {
		t.Fatalf("RunConsole: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Welcome to AUTO CODING!") {
		t.Errorf("greeting missing from output")
	}
	if !strings.Contains(text, "Who signs the order?") {
		t.Errorf("streamed chat reply missing from output")
	}
	if !strings.Contains(text, "bpmn_output.xml") {
		t.Errorf("finished message must name the output file")
	}

	if _, err := os.Stat(filepath.Join(dir, "bpmn_output.xml")); err != nil {
		t.Errorf("diagram not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bpmn_output.html")); err != nil {
		t.Errorf("viewer page not written: %v", err)
	}
}

func TestConsoleMissingKey(t *testing.T) {
	bot, dir := newTestBot(t)
	var out bytes.Buffer

	err := RunConsole(context.Background(), &ConsoleConfig{
		Bot:      bot,
		Language: "es",
		In:       strings.NewReader("hola\n"),
		Out:      &out,
	})
	if err != nil {
		t.Fatalf("RunConsole: %v", err)
	}
	if !strings.Contains(out.String(), "No olvides agregar tu API KEY") {
		t.Errorf("missing key notice not shown: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "bpmn_output.xml")); !os.IsNotExist(err) {
		t.Errorf("no diagram expected")
	}
}

func TestConsoleCommands(t *testing.T) {
	bot, _ := newTestBot(t)
	tmp := t.TempDir()
	doc := filepath.Join(tmp, "process.txt")
	if err := os.WriteFile(doc, []byte("Invoices are approved by finance."), 0644); err != nil {
		t.Fatal(err)
	}
	saved := filepath.Join(tmp, "transcript.md")

	input := strings.Join([]string{
		"/import " + doc,
		"/save " + saved,
		"/unknown",
		"/quit",
		"never read",
	}, "\n")
	var out bytes.Buffer

	err := RunConsole(context.Background(), &ConsoleConfig{
		Bot:      bot,
		Language: "en",
		In:       strings.NewReader(input),
		Out:      &out,
	})
	if err != nil {
		t.Fatalf("RunConsole: %v", err)
	}

	if !strings.Contains(out.String(), "Document added to the context") {
		t.Errorf("import notice missing")
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("unknown command must be reported")
	}
	data, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("transcript not saved: %v", err)
	}
	if !strings.Contains(string(data), "Invoices are approved by finance.") {
		t.Errorf("transcript misses the imported document")
	}
}
