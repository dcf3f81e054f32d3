package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campusnote/termcycle/internal/application/command"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/logger"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TERM ROLLOVER JOB
// ══════════════════════════════════════════════════════════════════════════════

// TermRolloverJob extends every owner's term window by the next year and
// retires the empty terms of the owner's oldest year. Both steps check what
// already exists, so running the job twice in a row changes nothing.
type TermRolloverJob struct {
	owners      term.OwnerSource
	uow         term.UnitOfWork
	provisioner *command.ProvisionTermsHandler
	clock       timeutil.Clock
	log         *logger.Logger
	concurrency int

	mu        sync.RWMutex
	lastStats *RolloverStats
}

// TermRolloverConfig contains configuration for the rollover job.
type TermRolloverConfig struct {
	// Concurrency is the number of owners processed in parallel.
	Concurrency int

	// Clock supplies "now" for scheduled runs.
	Clock timeutil.Clock
}

// RolloverStats contains statistics from a rollover run.
type RolloverStats struct {
	Now          time.Time       `json:"now"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  time.Time       `json:"completed_at"`
	Owners       int             `json:"owners"`
	Extended     int             `json:"extended"`
	TermsCreated int             `json:"terms_created"`
	TermsRetired int             `json:"terms_retired"`
	TermsKept    int             `json:"terms_kept"`
	Failed       int             `json:"failed"`
	Errors       []OwnerJobError `json:"errors,omitempty"`
}

// ownerRollover is the outcome of one owner's unit of work.
type ownerRollover struct {
	created int
	retired int
	kept    int
}

// NewTermRolloverJob creates a new rollover job.
func NewTermRolloverJob(
	owners term.OwnerSource,
	uow term.UnitOfWork,
	provisioner *command.ProvisionTermsHandler,
	config TermRolloverConfig,
	log *logger.Logger,
) *TermRolloverJob {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock{Location: timeutil.SeoulTZ}
	}

	return &TermRolloverJob{
		owners:      owners,
		uow:         uow,
		provisioner: provisioner,
		clock:       config.Clock,
		log:         logger.OrNop(log).With(logger.KeyJob, TermRolloverJobName),
		concurrency: config.Concurrency,
	}
}

// TermRolloverJobName is the scheduler name of the rollover job.
const TermRolloverJobName = "term_rollover"

// Name returns the job name.
func (j *TermRolloverJob) Name() string {
	return TermRolloverJobName
}

// Description returns a human-readable description.
func (j *TermRolloverJob) Description() string {
	return "Provisions next year's terms and retires empty terms of the oldest year"
}

// Run executes the rollover for the current time.
func (j *TermRolloverJob) Run(ctx context.Context) error {
	_, err := j.RunAt(ctx, j.clock.Now())
	return err
}

// RunAt executes the rollover as if the current time were now.
// It fails only when the owners cannot be listed or every owner failed;
// individual owner failures are reported in the stats.
func (j *TermRolloverJob) RunAt(ctx context.Context, now time.Time) (*RolloverStats, error) {
	stats := &RolloverStats{Now: now, StartedAt: time.Now()}

	owners, err := listOwners(ctx, j.owners)
	if err != nil {
		return nil, err
	}
	stats.Owners = len(owners)

	j.log.Info("rollover started", "owners", len(owners), logger.KeyYear, now.Year()+1)

	var mu sync.Mutex
	fan := ownerFanOut{job: TermRolloverJobName, concurrency: j.concurrency, log: j.log, now: time.Now}
	stats.Errors = fan.run(ctx, owners, func(ctx context.Context, ownerID string) error {
		res, err := j.rolloverOwner(ctx, ownerID, now)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if res.created > 0 {
			stats.Extended++
		}
		stats.TermsCreated += res.created
		stats.TermsRetired += res.retired
		stats.TermsKept += res.kept
		return nil
	})
	stats.Failed = len(stats.Errors)
	stats.CompletedAt = time.Now()

	j.setLastStats(stats)

	j.log.Info("rollover completed",
		"owners", stats.Owners,
		"extended", stats.Extended,
		"created", stats.TermsCreated,
		"retired", stats.TermsRetired,
		"kept", stats.TermsKept,
		"failed", stats.Failed,
		logger.KeyDuration, stats.CompletedAt.Sub(stats.StartedAt).String(),
	)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Owners > 0 && stats.Failed == stats.Owners {
		return stats, fmt.Errorf("%w: %d owners", ErrAllOwnersFailed, stats.Failed)
	}
	return stats, nil
}

// rolloverOwner extends and retires inside one unit of work.
func (j *TermRolloverJob) rolloverOwner(ctx context.Context, ownerID string, now time.Time) (ownerRollover, error) {
	var res ownerRollover
	nextYear := now.Year() + 1

	err := j.uow.WithinOwner(ctx, ownerID, func(ctx context.Context, stores term.TxStores) error {
		res = ownerRollover{}

		exists, err := stores.Terms.ExistsByName(ctx, ownerID, term.DisplayName(nextYear, term.SeasonSpring))
		if err != nil {
			return fmt.Errorf("check next year: %w", err)
		}
		if !exists {
			created, err := j.provisioner.EnsureWindow(ctx, stores.Terms, ownerID, nextYear, nextYear)
			if err != nil {
				return fmt.Errorf("extend: %w", err)
			}
			res.created = created.Created
		}

		terms, err := stores.Terms.ListByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("list terms: %w", err)
		}
		oldest, ok := oldestYear(terms)
		if !ok || oldest == nextYear {
			return nil
		}

		for _, t := range terms {
			if t.Year != oldest {
				continue
			}
			busy, err := stores.Coursework.HasCoursework(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("check coursework of %s: %w", t.Name, err)
			}
			if busy {
				res.kept++
				continue
			}
			// Coursework may arrive between the check and the delete.
			switch err := stores.Terms.Delete(ctx, t.ID); {
			case err == nil:
				res.retired++
			case errors.Is(err, term.ErrTermInUse):
				res.kept++
			case errors.Is(err, term.ErrTermNotFound):
			default:
				return fmt.Errorf("retire %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return ownerRollover{}, err
	}

	if res.created > 0 || res.retired > 0 {
		j.log.Debug("owner rolled over",
			logger.KeyOwnerID, ownerID,
			"created", res.created,
			"retired", res.retired,
			"kept", res.kept,
		)
	}
	return res, nil
}

func oldestYear(terms []*term.Term) (int, bool) {
	if len(terms) == 0 {
		return 0, false
	}
	oldest := terms[0].Year
	for _, t := range terms[1:] {
		if t.Year < oldest {
			oldest = t.Year
		}
	}
	return oldest, true
}

func (j *TermRolloverJob) setLastStats(stats *RolloverStats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastStats = stats
}

// LastStats returns the statistics of the last run, or nil.
func (j *TermRolloverJob) LastStats() *RolloverStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastStats
}

// LastReport implements scheduler.Reporter.
func (j *TermRolloverJob) LastReport() any {
	if s := j.LastStats(); s != nil {
		return s
	}
	return nil
}
