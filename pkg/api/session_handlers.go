package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/schardosin/bpmnbot/pkg/bpmn"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/metrics"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/provider"
	"github.com/schardosin/bpmnbot/pkg/session"
	"github.com/schardosin/bpmnbot/pkg/viewer"
	"go.uber.org/zap"
)

// ResultResponse describes the generated diagram of a session.
type ResultResponse struct {
	XML         string      `json:"xml"`
	FileName    string      `json:"file_name"`
	Path        string      `json:"path"`
	Report      bpmn.Report `json:"report"`
	Attempts    int         `json:"attempts"`
	Warnings    []string    `json:"warnings,omitempty"`
	ViewerURL   string      `json:"viewer_url"`
	FrameHeight int         `json:"frame_height"`
}

// SessionResponse is the response for GET /api/sessions/{id}
type SessionResponse struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Language  string                 `json:"language"`
	Keyword   string                 `json:"keyword"`
	Messages  []conversation.Message `json:"messages"`
	Result    *ResultResponse        `json:"result,omitempty"`
	HasKey    bool                   `json:"has_key"`
	NeedsKey  bool                   `json:"needs_key"`
	KeyNotice string                 `json:"key_notice"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// SessionListResponse is the response for GET /api/sessions
type SessionListResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

func (s *Server) resultResponse(id string, res *chatbot.Result) *ResultResponse {
	if res == nil {
		return nil
	}
	return &ResultResponse{
		XML:         res.XML,
		FileName:    s.bot.Writer().FileName(id),
		Path:        res.Path,
		Report:      res.Report,
		Attempts:    res.Attempts,
		Warnings:    res.Warnings,
		ViewerURL:   "/api/sessions/" + id + "/viewer",
		FrameHeight: viewer.OptionsFromConfig(s.bot.Config().Viewer, "").FrameHeight(),
	}
}

func (s *Server) sessionResponse(sess *session.Session) SessionResponse {
	cfg := s.bot.Config()
	return SessionResponse{
		ID:        sess.ID,
		Title:     sess.Title,
		Language:  sess.Conversation.Language,
		Keyword:   cfg.Chat.Keyword,
		Messages:  sess.Conversation.Messages,
		Result:    s.resultResponse(sess.ID, sess.Result),
		HasKey:    s.keys.Has(sess.ID),
		NeedsKey:  !config.HasAPIKey(cfg, provider.NormalizeName(cfg.General.DefaultProvider)),
		KeyNotice: prompts.For(sess.Conversation.Language).MissingAPIKey,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

// CreateSessionHandler handles POST /api/sessions
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	// an empty body is fine
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang != "es" && lang != "en" {
		lang = s.bot.Config().General.Language
	}

	sess := session.New(lang, s.bot.Config().Chat.Keyword)
	if err := s.store.Create(r.Context(), sess); err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	metrics.ActiveSessions.Inc()

	writeJSON(w, http.StatusCreated, s.sessionResponse(sess))
}

// ListSessionsHandler handles GET /api/sessions
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	metrics.ActiveSessions.Set(float64(len(list)))
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: list})
}

// GetSessionHandler handles GET /api/sessions/{id}
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sess))
}

// DeleteSessionHandler handles DELETE /api/sessions/{id}
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	unlock := s.lock(id)
	err := s.store.Delete(r.Context(), id)
	unlock()

	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete session", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	s.Forget([]string{id})
	metrics.ActiveSessions.Dec()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetKeyHandler handles PUT /api/sessions/{id}/key
func (s *Server) SetKeyHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(w, r)
	if sess == nil {
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.keys.Set(sess.ID, strings.TrimSpace(req.APIKey))
	writeJSON(w, http.StatusOK, map[string]bool{"has_key": s.keys.Has(sess.ID)})
}
