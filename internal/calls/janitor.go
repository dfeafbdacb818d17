package calls

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically evicts sessions whose last activity is older than
// the staleness threshold. It is the backstop for sessions that leaked past
// synchronous deletion, e.g. when a disconnect notification was lost, so it
// evicts regardless of member count.
type Janitor struct {
	store      *Store
	service    *Service
	interval   time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewJanitor builds a janitor sweeping every interval, evicting sessions
// idle longer than staleAfter.
func NewJanitor(store *Store, service *Service, interval, staleAfter time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		store:      store,
		service:    service,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Run blocks sweeping until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.Sweep()
		}
	}
}

// Sweep evicts every stale session. Codes are collected first under short
// per-entry locks, then evicted one by one; a failure on one entry does not
// stop the rest.
func (j *Janitor) Sweep() {
	now := j.store.Now()
	var stale []string
	j.store.ForEach(func(sess *Session) {
		if now.Sub(sess.LastActivity) > j.staleAfter {
			stale = append(stale, sess.Code)
		}
	})

	for _, code := range stale {
		if err := j.service.Evict(code); err != nil {
			// Already gone or unreadable; move on.
			j.logger.Debug("stale call eviction skipped", zap.String("code", code), zap.Error(err))
			continue
		}
		j.logger.Info("stale call evicted", zap.String("code", code))
	}
}
