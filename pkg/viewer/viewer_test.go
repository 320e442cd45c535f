package viewer

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/schardosin/bpmnbot/pkg/config"
)

func TestRenderEmbedsDiagram(t *testing.T) {
	xmlText := `<definitions id="d"><process id="Proceso_Compras" name="Compras Año"/></definitions>`

	html, err := Render(xmlText, Options{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(xmlText))
	checks := []string{
		`const xmlBase64 = "` + encoded + `";`,
		`https://unpkg.com/bpmn-js@11.5.0/dist/assets/diagram-js.css`,
		`https://unpkg.com/bpmn-js@11.5.0/dist/assets/bpmn-font/css/bpmn.css`,
		`https://unpkg.com/bpmn-js@11.5.0/dist/bpmn-viewer.development.js`,
		`min-width: 3000px`,
		`height: 600px`,
		`zoom("fit-viewport", "auto")`,
	}
	for _, want := range checks {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page is missing %q", want)
		}
	}
}

func TestRenderUsesConfig(t *testing.T) {
	cfg := config.ViewerConfig{
		BpmnJSVersion: "17.0.0",
		CDN:           "https://cdn.example.com",
		Height:        400,
		MinWidth:      1200,
	}
	opts := OptionsFromConfig(cfg, "Error cargando BPMN:")

	html, err := Render("<definitions/>", opts)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"https://cdn.example.com/bpmn-js@17.0.0/dist/bpmn-viewer.development.js",
		"min-width: 1200px",
		"height: 400px",
		"Error cargando BPMN:",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page is missing %q", want)
		}
	}

	if opts.FrameHeight() != 460 {
		t.Errorf("FrameHeight() = %d, expected 460", opts.FrameHeight())
	}
}

func TestRenderDoesNotInjectMarkup(t *testing.T) {
	html, err := Render(`</script><script>alert(1)</script>`, Options{Title: "<b>x</b>"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(html, "alert(1)") {
		t.Error("diagram text leaked into the page unencoded")
	}
	if strings.Contains(html, "<title><b>x</b></title>") {
		t.Error("title was not escaped")
	}
}
