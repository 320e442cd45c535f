// Package viewer renders the bpmn-js HTML page that displays a diagram.
package viewer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/schardosin/bpmnbot/pkg/config"
)

// Options controls the generated page.
type Options struct {
	Title      string
	Version    string // bpmn-js release
	CDN        string
	Height     int // canvas height in px
	MinWidth   int // canvas min-width in px, the wrapper scrolls horizontally
	ErrorLabel string
}

// OptionsFromConfig builds Options from the viewer section of the config.
func OptionsFromConfig(cfg config.ViewerConfig, errorLabel string) Options {
	return Options{
		Title:      "BPMN",
		Version:    cfg.BpmnJSVersion,
		CDN:        cfg.CDN,
		Height:     cfg.Height,
		MinWidth:   cfg.MinWidth,
		ErrorLabel: errorLabel,
	}
}

// FrameHeight is the iframe height needed to show the canvas without an
// inner vertical scrollbar.
func (o Options) FrameHeight() int {
	return o.Height + 60
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = config.DefaultBpmnJSVersion
	}
	if o.CDN == "" {
		o.CDN = config.DefaultCDN
	}
	if o.Height <= 0 {
		o.Height = 600
	}
	if o.MinWidth <= 0 {
		o.MinWidth = 3000
	}
	if o.ErrorLabel == "" {
		o.ErrorLabel = "Error loading BPMN:"
	}
	if o.Title == "" {
		o.Title = "BPMN"
	}
	return o
}

type pageData struct {
	Options
	AssetBase string
	XMLBase64 template.JSStr
}

var page = template.Must(template.New("viewer").Parse(pageTemplate))

// Render returns a standalone HTML document that loads bpmn-js from the CDN
// and imports the base64-encoded diagram.
func Render(xmlText string, opts Options) (string, error) {
	opts = opts.withDefaults()
	data := pageData{
		Options:   opts,
		AssetBase: fmt.Sprintf("%s/bpmn-js@%s/dist", opts.CDN, opts.Version),
		// the base64 alphabet is safe inside a JS string literal
		XMLBase64: template.JSStr(base64.StdEncoding.EncodeToString([]byte(xmlText))),
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render viewer: %w", err)
	}
	return buf.String(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.AssetBase}}/assets/diagram-js.css" />
  <link rel="stylesheet" href="{{.AssetBase}}/assets/bpmn-font/css/bpmn.css" />
  <style>
    html, body {
      margin: 0;
      padding: 0;
      overflow: hidden;
    }
    #wrapper {
      width: 100%;
      overflow-x: auto;
    }
    #canvas {
      min-width: {{.MinWidth}}px;
      height: {{.Height}}px;
      border: 1px solid #ccc;
    }
  </style>
</head>
<body>
  <div id="wrapper">
    <div id="canvas"></div>
  </div>
  <script src="{{.AssetBase}}/bpmn-viewer.development.js"></script>
  <script>
    const xmlBase64 = "{{.XMLBase64}}";
    const bytes = Uint8Array.from(atob(xmlBase64), c => c.charCodeAt(0));
    const xml = new TextDecoder("utf-8").decode(bytes);

    const viewer = new BpmnJS({ container: "#canvas" });
    window.bpmnViewer = viewer;

    viewer.importXML(xml).then(() => {
      viewer.get("canvas").zoom("fit-viewport", "auto");
      window.bpmnReady = true;
    }).catch(err => {
      const pre = document.createElement("pre");
      pre.textContent = {{.ErrorLabel}} + "\n" + err;
      const canvas = document.getElementById("canvas");
      canvas.innerHTML = "";
      canvas.appendChild(pre);
      window.bpmnError = String(err);
    });
  </script>
</body>
</html>
`
