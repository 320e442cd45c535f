// Package output writes generated diagrams to disk.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schardosin/bpmnbot/pkg/config"
)

// Writer places BPMN files (and optionally their viewer page) in a directory.
type Writer struct {
	dir        string
	fileName   string
	perSession bool
}

// NewWriter builds a writer from the output section of the config.
func NewWriter(cfg config.OutputConfig) *Writer {
	fileName := cfg.FileName
	if fileName == "" {
		fileName = config.DefaultOutputFile
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	return &Writer{dir: dir, fileName: fileName, perSession: cfg.PerSession}
}

// FileName is the name of the XML file written for a session.
func (w *Writer) FileName(sessionID string) string {
	if w.perSession && sessionID != "" {
		return sanitize(sessionID) + "_" + w.fileName
	}
	return w.fileName
}

// Write stores the XML and returns the path written.
func (w *Writer) Write(sessionID, xmlText string) (string, error) {
	path := filepath.Join(w.dir, w.FileName(sessionID))
	if err := writeAtomic(path, []byte(xmlText)); err != nil {
		return "", fmt.Errorf("failed to write BPMN file: %w", err)
	}
	return path, nil
}

// WriteHTML stores the viewer page next to the XML file.
func (w *Writer) WriteHTML(sessionID, html string) (string, error) {
	name := strings.TrimSuffix(w.FileName(sessionID), filepath.Ext(w.fileName)) + ".html"
	path := filepath.Join(w.dir, name)
	if err := writeAtomic(path, []byte(html)); err != nil {
		return "", fmt.Errorf("failed to write viewer file: %w", err)
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".bpmnbot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
