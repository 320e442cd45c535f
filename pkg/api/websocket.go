package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the studio is served from the same origin; allow any for local dev servers
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsWriteWait  = 10 * time.Second
	// messages sent while a turn runs wait here; more are refused
	wsQueueSize  = 4
)

// WSMessage is a frame sent by the server.
type WSMessage struct {
	Type string `json:"type"` // "chunk", "reply" or "error"
	Text string `json:"text,omitempty"`
	*TurnResponse
	Status int `json:"status,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait))
}

// WebSocketHandler handles GET /api/sessions/{id}/ws. Each text frame from
// the client is a MessageRequest; chat replies are streamed as chunk frames
// followed by a reply frame.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	raw.SetReadLimit(64 * 1024)
	raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	// r.Context() is not cancelled when a hijacked connection drops, so
	// the reader cancels ctx when the client goes away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan MessageRequest, wsQueueSize)
	go func() {
		defer cancel()
		for {
			var req MessageRequest
			if err := raw.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("websocket closed", zap.String("session", id), zap.Error(err))
				}
				return
			}
			select {
			case requests <- req:
			default:
				busy := TurnResponse{Error: chatbot.ErrRateLimited.Error()}
				conn.writeJSON(WSMessage{Type: "error", TurnResponse: &busy, Status: http.StatusTooManyRequests})
			}
		}
	}()

	// Heartbeat ping
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		var req MessageRequest
		select {
		case <-ctx.Done():
			return
		case req = <-requests:
		}

		resp, err := s.runTurn(ctx, id, req, func(chunk string) {
			conn.writeJSON(WSMessage{Type: "chunk", Text: chunk})
		})
		if ctx.Err() != nil {
			s.logger.Debug("websocket turn abandoned", zap.String("session", id))
			return
		}

		frame := WSMessage{Type: "reply", TurnResponse: &resp}
		if err != nil {
			frame.Type = "error"
			frame.Status = turnStatus(err)
		}
		if err := conn.writeJSON(frame); err != nil {
			return
		}
	}
}
