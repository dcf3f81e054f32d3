// Package jobs contains the scheduled jobs of termcycle. Jobs that touch
// terms work owner by owner: each owner gets its own unit of work, and a
// failure in one owner is recorded and does not stop the others.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/logger"
)

// DefaultConcurrency is the number of owners processed at once.
const DefaultConcurrency = 4

// ErrAllOwnersFailed is returned when a job ran for at least one owner and
// every owner failed.
var ErrAllOwnersFailed = errors.New("jobs: every owner failed")

// ErrOwnerPanicked wraps a panic recovered from one owner's work.
var ErrOwnerPanicked = errors.New("jobs: owner work panicked")

// OwnerJobError records the failure of one owner's unit of work.
type OwnerJobError struct {
	OwnerID    string    `json:"owner_id"`
	Job        string    `json:"job"`
	Err        error     `json:"-"`
	Message    string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Error implements error.
func (e *OwnerJobError) Error() string {
	return fmt.Sprintf("%s: owner %s: %v", e.Job, e.OwnerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *OwnerJobError) Unwrap() error {
	return e.Err
}

// ownerFanOut runs work for every owner with bounded concurrency. Work
// errors and panics are turned into OwnerJobErrors and never cancel the
// other owners. Cancelling ctx stops owners that have not started yet.
type ownerFanOut struct {
	job         string
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

func (f ownerFanOut) run(ctx context.Context, owners []string, work func(ctx context.Context, ownerID string) error) []OwnerJobError {
	var (
		mu   sync.Mutex
		errs []OwnerJobError
	)

	limit := f.concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for _, ownerID := range owners {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return nil
			}
			if err := guard(ctx, ownerID, work); err != nil {
				oe := OwnerJobError{
					OwnerID:    ownerID,
					Job:        f.job,
					Err:        err,
					Message:    err.Error(),
					OccurredAt: f.now(),
				}
				f.log.Error("owner failed", logger.KeyOwnerID, ownerID, logger.KeyError, err)

				mu.Lock()
				errs = append(errs, oe)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func guard(ctx context.Context, ownerID string, work func(ctx context.Context, ownerID string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrOwnerPanicked, r)
		}
	}()
	return work(ctx, ownerID)
}

// listOwners is shared by the owner-based jobs.
func listOwners(ctx context.Context, src term.OwnerSource) ([]string, error) {
	owners, err := src.ListOwnerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}
