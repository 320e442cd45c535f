package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/importer"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"go.uber.org/zap"
)

// ImportResponse is the response for POST /api/sessions/{id}/import
type ImportResponse struct {
	Source  string               `json:"source"`
	Kind    string               `json:"kind"`
	Chars   int                  `json:"chars"`
	Message conversation.Message `json:"message"`
	Notice  string               `json:"notice"`
}

// ImportHandler handles POST /api/sessions/{id}/import. The body is either
// JSON {"url": "..."} or a multipart form with a "file" field.
func (s *Server) ImportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, status, err := s.readDocument(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	unlock := s.lock(id)
	defer unlock()

	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	msg := sess.Conversation.AppendDocument(doc.Source, doc.Text)
	sess.Touch()
	if err := s.store.Save(r.Context(), sess); err != nil {
		s.logger.Error("failed to save session", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	s.logger.Info("document imported",
		zap.String("session", id),
		zap.String("source", doc.Source),
		zap.Int("chars", len(doc.Text)))

	catalog := prompts.For(sess.Conversation.Language)
	writeJSON(w, http.StatusOK, ImportResponse{
		Source:  doc.Source,
		Kind:    doc.Kind,
		Chars:   len(doc.Text),
		Message: msg,
		Notice:  fmt.Sprintf(catalog.DocumentImported, doc.Source),
	})
}

func (s *Server) readDocument(r *http.Request) (*importer.Document, int, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(importer.MaxSize); err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid upload")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("missing file field")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, importer.MaxSize+1))
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		if len(data) > importer.MaxSize {
			return nil, http.StatusRequestEntityTooLarge, importer.ErrTooLarge
		}

		mediaType := header.Header.Get("Content-Type")
		if strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			mediaType = "application/pdf"
		}
		if mediaType == "" || mediaType == "application/octet-stream" {
			mediaType = http.DetectContentType(data)
		}
		if i := strings.IndexByte(mediaType, ';'); i != -1 {
			mediaType = mediaType[:i]
		}

		doc, err := importer.Convert(header.Filename, mediaType, data)
		if err != nil {
			return nil, importStatus(err), err
		}
		return doc, http.StatusOK, nil
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		return nil, http.StatusBadRequest, errors.New("url is required")
	}
	doc, err := s.importer.FromURL(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		return nil, importStatus(err), err
	}
	return doc, http.StatusOK, nil
}

func importStatus(err error) int {
	switch {
	case errors.Is(err, importer.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrUnsupported), errors.Is(err, importer.ErrEmpty):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadGateway
	}
}
