package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/importer"
	"github.com/schardosin/bpmnbot/pkg/metrics"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

// Server holds the dependencies of the studio API.
type Server struct {
	bot      *chatbot.Bot
	store    session.Store
	keys     *session.KeyRing
	importer *importer.Importer
	logger   *zap.Logger
	locks    sync.Map // session ID -> *sync.Mutex
}

// NewServer creates the API server. keys and im may be nil.
func NewServer(bot *chatbot.Bot, store session.Store, keys *session.KeyRing, im *importer.Importer, logger *zap.Logger) *Server {
	if keys == nil {
		keys = session.NewKeyRing()
	}
	if im == nil {
		im = importer.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		bot:      bot,
		store:    store,
		keys:     keys,
		importer: im,
		logger:   logger,
	}
}

// Keys returns the in-memory API key ring.
func (s *Server) Keys() *session.KeyRing {
	return s.keys
}

// Forget drops in-memory state for sessions removed elsewhere, e.g. by
// cleanup. It waits for a turn in flight on the session and deletes the
// session again in case that turn saved it back.
func (s *Server) Forget(ids []string) {
	for _, id := range ids {
		unlock := s.lock(id)
		s.keys.Delete(id)
		s.bot.Forget(id)
		if err := s.store.Delete(context.Background(), id); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("failed to delete forgotten session", zap.String("session", id), zap.Error(err))
		}
		s.locks.Delete(id)
		unlock()
	}
}

// lock serializes turns on one session.
func (s *Server) lock(id string) func() {
	m, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Notice string `json:"notice,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// loadSession writes a 404 and returns nil when the session does not exist.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) *session.Session {
	id := mux.Vars(r)["id"]
	sess, err := s.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return nil
	}
	if err != nil {
		s.logger.Error("failed to load session", zap.String("session", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return nil
	}
	return sess
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// instrument records request metrics and logs each request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.RecordHTTP(route, r.Method, rec.status, time.Since(start))
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// RegisterRoutes registers the API routes on a router
func (s *Server) RegisterRoutes(router *mux.Router) {
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(s.instrument)

	apiRouter.HandleFunc("/sessions", s.CreateSessionHandler).Methods("POST")
	apiRouter.HandleFunc("/sessions", s.ListSessionsHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}", s.GetSessionHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}", s.DeleteSessionHandler).Methods("DELETE")
	apiRouter.HandleFunc("/sessions/{id}/key", s.SetKeyHandler).Methods("PUT")
	apiRouter.HandleFunc("/sessions/{id}/messages", s.MessageHandler).Methods("POST")
	apiRouter.HandleFunc("/sessions/{id}/ws", s.WebSocketHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}/bpmn", s.DownloadBPMNHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}/viewer", s.ViewerHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}/transcript", s.TranscriptHandler).Methods("GET")
	apiRouter.HandleFunc("/sessions/{id}/import", s.ImportHandler).Methods("POST")

	apiRouter.HandleFunc("/settings", s.GetSettingsHandler).Methods("GET")
	apiRouter.HandleFunc("/settings", s.UpdateSettingsHandler).Methods("PUT")
	apiRouter.HandleFunc("/settings/status", s.GetSetupStatusHandler).Methods("GET")
	apiRouter.HandleFunc("/providers/{name}/models", s.ListProviderModelsHandler).Methods("GET")

	router.HandleFunc("/healthz", s.HealthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
