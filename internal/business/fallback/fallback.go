// Package fallback runs a primary lookup and substitutes a backup lookup when the
// primary fails, times out, or finds nothing.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

// DefaultPrimaryTimeout bounds the primary call when the coordinator is built without one.
const DefaultPrimaryTimeout = 5 * time.Second

// Fetch is one side of a fallback pair.
type Fetch[T any] func(ctx context.Context) ([]T, error)

// Result carries the items and which side produced them.
type Result[T any] struct {
	Items  []T              `json:"items"`
	Source model.Provenance `json:"source"`
}

// DegradedError is returned when the backup failed after the primary failed or found
// nothing. Primary is nil in the latter case. It unwraps to the primary error when there
// is one, otherwise to the backup error.
type DegradedError struct {
	Op      string
	Primary error
	Backup  error
}

func (e *DegradedError) Error() string {
	if e.Primary == nil {
		return fmt.Sprintf("%s: primary found nothing; backup failed: %v", e.Op, e.Backup)
	}
	return fmt.Sprintf("%s: primary failed: %v; backup failed: %v", e.Op, e.Primary, e.Backup)
}

func (e *DegradedError) Unwrap() error {
	if e.Primary != nil {
		return e.Primary
	}
	return e.Backup
}

// IsDegraded reports whether err came from a failed backup lookup.
func IsDegraded(err error) bool {
	var d *DegradedError
	return errors.As(err, &d)
}

// Coordinator holds the policy shared by every fallback call site.
type Coordinator struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoordinator builds a coordinator. timeout <= 0 uses DefaultPrimaryTimeout.
func NewCoordinator(timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultPrimaryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{timeout: timeout, logger: logger}
}

// Do runs primary under the coordinator timeout. A non-empty primary result is returned
// as is and backup is never called. Otherwise backup runs:
//   - backup succeeds: its items are returned tagged as backup
//   - backup fails: a *DegradedError, with Primary nil when the primary was empty
func Do[T any](ctx context.Context, c *Coordinator, op string, primary, backup Fetch[T]) (Result[T], error) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	items, perr := primary(pctx)
	cancel()
	if perr == nil && len(items) > 0 {
		return Result[T]{Items: items, Source: model.ProvenancePrimary}, nil
	}

	if perr != nil {
		c.logger.Warn("primary lookup failed, using backup", zap.String("op", op), zap.Error(perr))
	} else {
		c.logger.Debug("primary lookup empty, using backup", zap.String("op", op))
	}

	if err := ctx.Err(); err != nil {
		if perr == nil {
			return Result[T]{}, err
		}
		return Result[T]{}, &DegradedError{Op: op, Primary: perr, Backup: err}
	}

	backupItems, berr := backup(ctx)
	if berr == nil {
		if backupItems == nil {
			backupItems = []T{}
		}
		return Result[T]{Items: backupItems, Source: model.ProvenanceBackup}, nil
	}

	if perr == nil {
		c.logger.Error("backup lookup failed after empty primary", zap.String("op", op), zap.Error(berr))
		return Result[T]{}, &DegradedError{Op: op, Backup: berr}
	}
	c.logger.Error("primary and backup lookups failed",
		zap.String("op", op), zap.NamedError("primary_error", perr), zap.NamedError("backup_error", berr))
	return Result[T]{}, &DegradedError{Op: op, Primary: perr, Backup: berr}
}
