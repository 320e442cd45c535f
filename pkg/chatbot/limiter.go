package chatbot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterSet keeps one token bucket per session.
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newLimiterSet allows perMinute turns per session; zero or less disables it.
func newLimiterSet(perMinute int) *limiterSet {
	s := &limiterSet{limiters: make(map[string]*rate.Limiter)}
	if perMinute <= 0 {
		s.limit = rate.Inf
		return s
	}
	s.limit = rate.Every(time.Minute / time.Duration(perMinute))
	s.burst = max(1, perMinute/4)
	return s
}

func (s *limiterSet) allow(sessionID string) bool {
	if s.limit == rate.Inf {
		return true
	}
	s.mu.Lock()
	l, ok := s.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[sessionID] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

func (s *limiterSet) remove(sessionID string) {
	s.mu.Lock()
	delete(s.limiters, sessionID)
	s.mu.Unlock()
}
