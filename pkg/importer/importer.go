// Package importer turns external documents into plain text that can be
// added to a conversation as process context.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/ledongthuc/pdf"
)

// MaxSize is the largest document accepted, in bytes.
const MaxSize = 10 << 20

// MaxTextRunes caps the extracted text added to a conversation.
const MaxTextRunes = 20000

// TruncatedMarker ends text cut at MaxTextRunes.
const TruncatedMarker = "\n\n[...]"

var (
	ErrTooLarge    = errors.New("document too large")
	ErrUnsupported = errors.New("unsupported document type")
	ErrEmpty       = errors.New("document has no text")
)

// Document is imported text and where it came from.
type Document struct {
	Source    string `json:"source"`
	Kind      string `json:"kind"` // "html", "pdf" or "text"
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"` // Text was cut at MaxTextRunes
}

// Importer fetches and converts documents.
type Importer struct {
	client *http.Client
}

// New returns an Importer. A nil client uses a 30 second timeout.
func New(client *http.Client) *Importer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Importer{client: client}
}

// FromURL downloads rawURL and converts it according to its content type.
func (im *Importer) FromURL(ctx context.Context, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "bpmnbot/1.0")

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", rawURL, resp.Status)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return Convert(rawURL, mediaType, data)
}

// FromFile reads a local document. The type is taken from the extension.
func FromFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, err
	}
	return Convert(filepath.Base(path), mediaTypeFor(path, data), data)
}

// Convert turns raw bytes of the given media type into a Document.
func Convert(source, mediaType string, data []byte) (*Document, error) {
	mediaType = strings.ToLower(mediaType)

	var doc *Document
	var err error
	switch {
	case mediaType == "application/pdf":
		doc, err = convertPDF(data)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		doc, err = convertHTML(data)
	case strings.HasPrefix(mediaType, "text/"):
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: text is not UTF-8", ErrUnsupported)
		}
		doc = &Document{Kind: "text", Text: string(data)}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mediaType)
	}
	if err != nil {
		return nil, err
	}

	doc.Source = source
	doc.Text = strings.TrimSpace(doc.Text)
	if doc.Text == "" {
		return nil, ErrEmpty
	}
	doc.Text, doc.Truncated = capText(doc.Text, MaxTextRunes)
	return doc, nil
}

func capText(text string, limit int) (string, bool) {
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + TruncatedMarker, true
}

func convertHTML(data []byte) (*Document, error) {
	md, err := htmltomarkdown.ConvertString(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to convert HTML: %w", err)
	}
	return &Document{Kind: "html", Text: md}, nil
}

func convertPDF(data []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return nil, fmt.Errorf("failed to extract PDF text: %w", err)
	}
	return &Document{Kind: "pdf", Text: buf.String()}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

func mediaTypeFor(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	case ".md", ".markdown", ".txt":
		return "text/plain"
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
