// Package snapshot drives a Chrome browser through rod to render the
// viewer page, export the diagram as PNG or SVG, or show it on screen.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrNoBrowser is returned when no Chrome or Chromium binary can be found.
var ErrNoBrowser = errors.New("no Chrome or Chromium browser found")

// Options configures the browser.
type Options struct {
	// Bin is the browser binary; empty looks one up.
	Bin string
	// Timeout bounds loading bpmn-js and importing the diagram.
	Timeout time.Duration
	Width   int
	Height  int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Width <= 0 {
		o.Width = 1600
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	return o
}

// Available reports whether a browser binary can be located.
func Available(bin string) bool {
	if bin != "" {
		return true
	}
	_, ok := launcher.LookPath()
	return ok
}

type session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

func (s *session) close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
}

// open launches the browser and loads viewerHTML, waiting until bpmn-js
// reports success or failure.
func open(ctx context.Context, viewerHTML string, opts Options, headless bool) (*session, error) {
	if !Available(opts.Bin) {
		return nil, ErrNoBrowser
	}

	l := launcher.New().Headless(headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	s := &session{launcher: l}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	s.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := s.browser.Connect(); err != nil {
		s.close()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.close()
		return nil, err
	}

	if err := s.page.SetDocumentContent(viewerHTML); err != nil {
		s.close()
		return nil, fmt.Errorf("load viewer: %w", err)
	}

	waitPage := s.page.Timeout(opts.Timeout)
	if err := waitPage.Wait(rod.Eval(`() => window.bpmnReady === true || !!window.bpmnError`)); err != nil {
		s.close()
		return nil, fmt.Errorf("viewer did not load: %w", err)
	}

	res, err := s.page.Eval(`() => window.bpmnError || ""`)
	if err != nil {
		s.close()
		return nil, err
	}
	if msg := res.Value.Str(); msg != "" {
		s.close()
		return nil, fmt.Errorf("bpmn-js could not import the diagram: %s", msg)
	}
	return s, nil
}

// PNG renders viewerHTML headless and captures the diagram canvas.
func PNG(ctx context.Context, viewerHTML string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	s, err := open(ctx, viewerHTML, opts, true)
	if err != nil {
		return nil, err
	}
	defer s.close()

	el, err := s.page.Element("#canvas")
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

// SVG renders viewerHTML headless and exports the diagram through bpmn-js.
func SVG(ctx context.Context, viewerHTML string, opts Options) (string, error) {
	opts = opts.withDefaults()
	s, err := open(ctx, viewerHTML, opts, true)
	if err != nil {
		return "", err
	}
	defer s.close()

	res, err := s.page.Eval(`() => window.bpmnViewer.saveSVG().then(r => r.svg)`)
	if err != nil {
		return "", fmt.Errorf("export svg: %w", err)
	}
	return res.Value.Str(), nil
}

// Show opens a visible browser window with the viewer and blocks until ctx
// is done.
func Show(ctx context.Context, viewerHTML string, opts Options) error {
	opts = opts.withDefaults()
	s, err := open(ctx, viewerHTML, opts, false)
	if err != nil {
		return err
	}
	defer s.close()

	<-ctx.Done()
	return nil
}
