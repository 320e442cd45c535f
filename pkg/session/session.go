// Package session persists conversations between turns.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/conversation"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// Session is one user's conversation and its last generated diagram.
type Session struct {
	ID           string                     `json:"id"`
	Title        string                     `json:"title"`
	Conversation *conversation.Conversation `json:"conversation"`
	Result       *chatbot.Result            `json:"result,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	HasResult bool      `json:"has_result"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// List returns summaries, most recently updated first.
	List(ctx context.Context) ([]Summary, error)
	// DeleteExpired removes sessions not updated since before and returns their IDs.
	DeleteExpired(ctx context.Context, before time.Time) ([]string, error)
	Close() error
}

// New returns a fresh session seeded with the greeting for keyword.
func New(lang, keyword string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           uuid.NewString(),
		Conversation: conversation.New(lang, keyword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Touch updates the timestamp and derives the title from the first user message.
func (s *Session) Touch() {
	s.UpdatedAt = time.Now().UTC()
	if s.Title != "" || s.Conversation == nil {
		return
	}
	for _, m := range s.Conversation.Messages {
		if m.Role == conversation.RoleUser && m.Source == "" {
			s.Title = truncate(m.Text, 60)
			return
		}
	}
}

// Summary returns the listing view.
func (s *Session) Summary() Summary {
	n := 0
	if s.Conversation != nil {
		n = len(s.Conversation.Messages)
	}
	return Summary{
		ID:        s.ID,
		Title:     s.Title,
		Messages:  n,
		HasResult: s.Result != nil,
		UpdatedAt: s.UpdatedAt,
	}
}

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, ttl time.Duration) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, ttl)
	default:
		return nil, fmt.Errorf("unknown session store driver: %s", cfg.Driver)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
}
