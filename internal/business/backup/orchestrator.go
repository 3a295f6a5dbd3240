package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SweepFn fetches one slice of records for a state. The empty state is the unfiltered call.
type SweepFn[T any] func(ctx context.Context, state string) ([]T, error)

// SweepStats counts the calls a sweep made.
type SweepStats struct {
	Calls  int
	Failed int
}

// Orchestrator fans portal calls out over a bounded worker pool.
type Orchestrator struct {
	workerCount int
	logger      *zap.Logger
}

func NewOrchestrator(workerCount int, logger *zap.Logger) *Orchestrator {
	if workerCount <= 0 {
		workerCount = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{workerCount: workerCount, logger: logger}
}

type sweepResult[T any] struct {
	state   string
	records []T
	err     error
}

// Sweep calls fn once per state plus once unfiltered and concatenates the results.
// Individual failures are logged and skipped; the sweep fails only when every call failed
// or ctx was canceled.
func Sweep[T any](ctx context.Context, o *Orchestrator, entity string, states []string, fn SweepFn[T]) ([]T, SweepStats, error) {
	calls := make([]string, 0, len(states)+1)
	calls = append(calls, states...)
	calls = append(calls, "")

	out := make(chan sweepResult[T])
	jobs := make(chan string)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for state := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			records, err := fn(ctx, state)
			select {
			case out <- sweepResult[T]{state: state, records: records, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}

	workers := o.workerCount
	if workers > len(calls) {
		workers = len(calls)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		defer close(out)
		defer wg.Wait()
		defer close(jobs)
		for _, state := range calls {
			select {
			case jobs <- state:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		records []T
		stats   SweepStats
		errs    []error
	)
	for res := range out {
		stats.Calls++
		if res.err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("state %q: %w", res.state, res.err))
			o.logger.Warn("backup fetch failed",
				zap.String("entity", entity),
				zap.String("state", res.state),
				zap.Error(res.err))
			continue
		}
		records = append(records, res.records...)
	}

	if err := ctx.Err(); err != nil {
		return records, stats, err
	}
	if stats.Calls > 0 && stats.Failed == stats.Calls {
		return nil, stats, fmt.Errorf("fetch %s: all %d calls failed: %w", entity, stats.Calls, errors.Join(errs...))
	}
	return records, stats, nil
}
