package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/transcript"
	"github.com/schardosin/bpmnbot/pkg/viewer"
	"go.uber.org/zap"
)

// DownloadBPMNHandler handles GET /api/sessions/{id}/bpmn
func (s *Server) DownloadBPMNHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	if sess.Result == nil {
		writeError(w, http.StatusNotFound, "No diagram generated yet")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.bot.Writer().FileName(sess.ID)))
	w.Write([]byte(sess.Result.XML))
}

// ViewerHandler handles GET /api/sessions/{id}/viewer
func (s *Server) ViewerHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	if sess.Result == nil {
		writeError(w, http.StatusNotFound, "No diagram generated yet")
		return
	}

	catalog := prompts.For(sess.Conversation.Language)
	opts := viewer.OptionsFromConfig(s.bot.Config().Viewer, catalog.ViewerError)
	page, err := viewer.Render(sess.Result.XML, opts)
	if err != nil {
		s.logger.Error("failed to render viewer", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render viewer")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

// TranscriptHandler handles GET /api/sessions/{id}/transcript?format=md|html|pdf
func (s *Server) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	format, err := transcript.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := transcript.Input{Title: sess.Title, Conversation: sess.Conversation}
	if sess.Result != nil {
		in.XML = sess.Result.XML
	}
	data, err := transcript.Render(in, format)
	if err != nil {
		s.logger.Error("failed to render transcript", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render transcript")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if r.URL.Query().Get("download") != "" {
		name := transcriptFileName(sess.ID, format)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	w.Write(data)
}

// transcriptFileName names a transcript download after the first characters
// of the session ID. IDs from other front-ends may be short, e.g. "tg-5".
func transcriptFileName(id string, format transcript.Format) string {
	short := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, id)
	short = short[:min(8, len(short))]
	if short == "" {
		short = "session"
	}
	return "transcript_" + short + "." + string(format)
}
