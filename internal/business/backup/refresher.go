package backup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Defaults for the refresh loop.
const (
	DefaultRefreshInterval = 2 * time.Hour
	DefaultRetryInterval   = 30 * time.Minute
)

// Refresher runs the background refresh loop: a long wait after a healthy cycle, a short
// one after a failed or partial cycle. A stale read wakes it early, except while it is
// backing off after a failure.
type Refresher struct {
	svc      *Service
	interval time.Duration
	retry    time.Duration
	logger   *zap.Logger
}

func NewRefresher(svc *Service, interval, retry time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{svc: svc, interval: interval, retry: retry, logger: logger}
}

// Run blocks until ctx is canceled. Cancellation also aborts the in-flight cycle.
func (r *Refresher) Run(ctx context.Context) {
	for {
		wait, healthy := r.tick(ctx)
		if ctx.Err() != nil {
			return
		}
		var nudges <-chan struct{}
		if healthy {
			nudges = r.svc.Nudges()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-nudges:
			timer.Stop()
			r.logger.Debug("stale read woke the refresh loop")
		}
	}
}

// tick runs one non-forced refresh and returns how long to wait before the next.
func (r *Refresher) tick(ctx context.Context) (time.Duration, bool) {
	res, err := r.svc.Refresh(ctx, false)
	switch {
	case err != nil:
		r.logger.Error("backup refresh failed", zap.Error(err), zap.Duration("retry_in", r.retry))
		return r.retry, false
	case !res.Healthy():
		r.logger.Warn("backup refresh incomplete",
			zap.String("status", string(res.Status)),
			zap.Duration("retry_in", r.retry))
		return r.retry, false
	default:
		return r.interval, true
	}
}
