package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/schardosin/bpmnbot/pkg/metrics"
	"go.uber.org/zap"
)

// Janitor removes expired sessions on a cron schedule.
type Janitor struct {
	store     Store
	ttl       time.Duration
	logger    *zap.Logger
	onExpired func(ids []string)
	cron      *cron.Cron
}

// NewJanitor schedules cleanup. onExpired may be nil; it receives the IDs
// removed by each run so callers can drop in-memory state for them.
func NewJanitor(store Store, ttl time.Duration, schedule string, logger *zap.Logger, onExpired func(ids []string)) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Janitor{
		store:     store,
		ttl:       ttl,
		logger:    logger,
		onExpired: onExpired,
		cron:      cron.New(),
	}
	if _, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running cleanup to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce deletes sessions idle longer than the TTL.
func (j *Janitor) RunOnce(ctx context.Context) int {
	ids, err := j.store.DeleteExpired(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		j.logger.Warn("session cleanup failed", zap.Error(err))
		return 0
	}
	if len(ids) == 0 {
		return 0
	}
	metrics.SessionsExpired.Add(float64(len(ids)))
	if j.onExpired != nil {
		j.onExpired(ids)
	}
	j.logger.Info("expired sessions removed", zap.Int("count", len(ids)))
	return len(ids)
}
