package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/pkg/logger"
)

// CalendarReloadJobName is the scheduler name of the reload job.
const CalendarReloadJobName = "calendar_reload"

// CalendarReloadJob re-reads the academic calendar feed. A failed reload
// keeps the previous snapshot.
type CalendarReloadJob struct {
	holder *calendar.Holder
	log    *logger.Logger

	mu   sync.RWMutex
	last *CalendarReloadStats
}

// CalendarReloadStats describes the snapshot produced by the last reload.
type CalendarReloadStats struct {
	LoadedAt time.Time `json:"loaded_at"`
	Keys     []string  `json:"keys"`
}

// NewCalendarReloadJob creates a new reload job.
func NewCalendarReloadJob(holder *calendar.Holder, log *logger.Logger) *CalendarReloadJob {
	return &CalendarReloadJob{
		holder: holder,
		log:    logger.OrNop(log).With(logger.KeyJob, CalendarReloadJobName),
	}
}

// Name returns the job name.
func (j *CalendarReloadJob) Name() string { return CalendarReloadJobName }

// Description returns a human-readable description.
func (j *CalendarReloadJob) Description() string {
	return "Reloads term start dates from the academic calendar feed"
}

// Run reloads the calendar.
func (j *CalendarReloadJob) Run(ctx context.Context) error {
	snap, err := j.holder.Reload(ctx)
	if err != nil {
		return fmt.Errorf("reload calendar: %w", err)
	}

	stats := &CalendarReloadStats{LoadedAt: time.Now(), Keys: snap.Keys()}
	j.mu.Lock()
	j.last = stats
	j.mu.Unlock()

	j.log.Info("calendar reloaded", "keys", len(stats.Keys))
	return nil
}

// LastReport implements scheduler.Reporter.
func (j *CalendarReloadJob) LastReport() any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return nil
	}
	return j.last
}
