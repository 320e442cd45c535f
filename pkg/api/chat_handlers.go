package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

// MessageRequest is the request for POST /api/sessions/{id}/messages
type MessageRequest struct {
	Message string `json:"message"`
	// APIKey, when set, replaces the session key before the turn.
	APIKey string `json:"api_key,omitempty"`
}

// TurnResponse is the outcome of a turn.
type TurnResponse struct {
	Kind     string                 `json:"kind,omitempty"`
	Messages []conversation.Message `json:"messages"`
	Notice   string                 `json:"notice,omitempty"`
	Result   *ResultResponse        `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// turnStatus maps turn errors to HTTP status codes.
func turnStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chatbot.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, chatbot.ErrMissingAPIKey):
		return http.StatusUnauthorized
	case errors.Is(err, chatbot.ErrEmptyContext):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chatbot.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusBadGateway
	}
}

// runTurn loads the session, runs one turn under the session lock and saves
// whatever the turn appended.
func (s *Server) runTurn(ctx context.Context, id string, req MessageRequest, onChunk func(string)) (TurnResponse, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return TurnResponse{Error: err.Error()}, err
	}

	if key := strings.TrimSpace(req.APIKey); key != "" {
		s.keys.Set(id, key)
	}
	apiKey := s.keys.Get(id)

	var reply *chatbot.Reply
	if onChunk != nil {
		reply, err = s.bot.Stream(ctx, id, sess.Conversation, req.Message, apiKey, onChunk)
	} else {
		reply, err = s.bot.Turn(ctx, id, sess.Conversation, req.Message, apiKey)
	}

	resp := TurnResponse{Messages: []conversation.Message{}}
	if reply != nil {
		resp.Kind = string(reply.Kind)
		resp.Notice = reply.Notice
		if len(reply.Messages) > 0 {
			resp.Messages = reply.Messages
		}
		if reply.Result != nil {
			sess.Result = reply.Result
			resp.Result = s.resultResponse(id, reply.Result)
		}
		if len(reply.Messages) > 0 || reply.Result != nil {
			sess.Touch()
			if saveErr := s.store.Save(ctx, sess); saveErr != nil {
				s.logger.Error("failed to save session", zap.String("session", id), zap.Error(saveErr))
				if err == nil {
					err = saveErr
				}
			}
		}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp, err
}

// MessageHandler handles POST /api/sessions/{id}/messages
func (s *Server) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	resp, err := s.runTurn(r.Context(), id, req, nil)
	status := turnStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("turn failed", zap.String("session", id), zap.Error(err))
	}
	writeJSON(w, status, resp)
}
