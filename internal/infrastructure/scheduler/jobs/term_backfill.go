package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campusnote/termcycle/internal/application/command"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/logger"
)

// TermBackfillJobName is the scheduler name of the backfill job.
const TermBackfillJobName = "term_backfill"

// TermBackfillJob re-stamps start dates that were missing or came from the
// fallback table, for every owner, once the calendar has a real date.
type TermBackfillJob struct {
	owners      term.OwnerSource
	provisioner *command.ProvisionTermsHandler
	log         *logger.Logger
	concurrency int

	mu        sync.RWMutex
	lastStats *BackfillStats
}

// BackfillStats contains statistics from a backfill run.
type BackfillStats struct {
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Owners      int             `json:"owners"`
	Restamped   int             `json:"restamped"`
	Unchanged   int             `json:"unchanged"`
	Failed      int             `json:"failed"`
	Errors      []OwnerJobError `json:"errors,omitempty"`
}

// NewTermBackfillJob creates a new backfill job.
func NewTermBackfillJob(owners term.OwnerSource, provisioner *command.ProvisionTermsHandler, concurrency int, log *logger.Logger) *TermBackfillJob {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &TermBackfillJob{
		owners:      owners,
		provisioner: provisioner,
		log:         logger.OrNop(log).With(logger.KeyJob, TermBackfillJobName),
		concurrency: concurrency,
	}
}

// Name returns the job name.
func (j *TermBackfillJob) Name() string { return TermBackfillJobName }

// Description returns a human-readable description.
func (j *TermBackfillJob) Description() string {
	return "Replaces fallback term start dates with calendar dates"
}

// Run backfills every owner.
func (j *TermBackfillJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce backfills every owner and returns the run statistics.
func (j *TermBackfillJob) RunOnce(ctx context.Context) (*BackfillStats, error) {
	stats := &BackfillStats{StartedAt: time.Now()}

	owners, err := listOwners(ctx, j.owners)
	if err != nil {
		return nil, err
	}
	stats.Owners = len(owners)

	var mu sync.Mutex
	fan := ownerFanOut{job: TermBackfillJobName, concurrency: j.concurrency, log: j.log, now: time.Now}
	stats.Errors = fan.run(ctx, owners, func(ctx context.Context, ownerID string) error {
		res, err := j.provisioner.Backfill(ctx, ownerID)
		if err != nil {
			return err
		}
		mu.Lock()
		stats.Restamped += res.Restamped
		stats.Unchanged += res.Unchanged
		mu.Unlock()
		return nil
	})
	stats.Failed = len(stats.Errors)
	stats.CompletedAt = time.Now()

	j.mu.Lock()
	j.lastStats = stats
	j.mu.Unlock()

	j.log.Info("backfill completed",
		"owners", stats.Owners,
		"restamped", stats.Restamped,
		"failed", stats.Failed,
	)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Owners > 0 && stats.Failed == stats.Owners {
		return stats, fmt.Errorf("%w: %d owners", ErrAllOwnersFailed, stats.Failed)
	}
	return stats, nil
}

// LastReport implements scheduler.Reporter.
func (j *TermBackfillJob) LastReport() any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.lastStats == nil {
		return nil
	}
	return j.lastStats
}
