package backup

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrRefreshInProgress is returned when another refresh cycle holds the guard.
var ErrRefreshInProgress = errors.New("backup refresh already in progress")

// Lease is a cross-replica lock on the refresh cycle. TryAcquire reports false when another
// owner holds it.
type Lease interface {
	TryAcquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

// RefreshGuard lets one refresh cycle run at a time and keeps its cancel function so
// shutdown can abandon it.
type RefreshGuard struct {
	mu      sync.Mutex
	running string
	cancel  context.CancelFunc
	lease   Lease
	logger  *zap.Logger
}

// NewRefreshGuard creates a guard. lease may be nil for single-replica deployments.
func NewRefreshGuard(lease Lease, logger *zap.Logger) *RefreshGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshGuard{lease: lease, logger: logger}
}

// Begin claims the guard for runID and returns a cancelable child of ctx plus a release
// function that must be called when the cycle ends.
func (g *RefreshGuard) Begin(ctx context.Context, runID string) (context.Context, func(), error) {
	g.mu.Lock()
	if g.running != "" {
		g.mu.Unlock()
		return nil, nil, ErrRefreshInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.running = runID
	g.cancel = cancel
	g.mu.Unlock()

	if g.lease != nil {
		ok, err := g.lease.TryAcquire(ctx, runID)
		switch {
		case err != nil:
			// The in-process flag still holds.
			g.logger.Warn("refresh lease unavailable, continuing without it", zap.Error(err))
		case !ok:
			g.end(runID, cancel)
			return nil, nil, ErrRefreshInProgress
		}
	}

	release := func() {
		if g.lease != nil {
			if err := g.lease.Release(context.WithoutCancel(ctx), runID); err != nil {
				g.logger.Warn("release refresh lease", zap.String("run_id", runID), zap.Error(err))
			}
		}
		g.end(runID, cancel)
	}
	return runCtx, release, nil
}

func (g *RefreshGuard) end(runID string, cancel context.CancelFunc) {
	cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == runID {
		g.running = ""
		g.cancel = nil
	}
}

// Cancel aborts the in-flight cycle, if any. Returns true if one was running.
func (g *RefreshGuard) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel == nil {
		return false
	}
	g.cancel()
	return true
}

// IsRunning reports whether a cycle holds the guard.
func (g *RefreshGuard) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running != ""
}

// Running returns the id of the in-flight cycle, or "".
func (g *RefreshGuard) Running() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
