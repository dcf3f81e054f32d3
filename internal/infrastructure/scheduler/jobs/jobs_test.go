package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnote/termcycle/internal/application/command"
	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/memory"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

var rolloverNow = time.Date(2025, time.December, 1, 3, 0, 0, 0, timeutil.SeoulTZ)

func newProvisioner(store *memory.Store, snap calendar.Snapshot) *command.ProvisionTermsHandler {
	var n atomic.Int64
	return command.NewProvisionTermsHandler(store, term.NewStartResolver(snap), command.ProvisionTermsHandlerConfig{
		FirstYear:  2024,
		YearsAhead: 1,
		Clock:      timeutil.FixedClock(rolloverNow),
		NewID:      func() string { return fmt.Sprintf("t-%04d", n.Add(1)) },
	}, nil)
}

// seed provisions [from, to] for the owner and returns the terms by name.
func seed(t *testing.T, store *memory.Store, p *command.ProvisionTermsHandler, owner string, from, to int) map[string]*term.Term {
	t.Helper()
	store.AddOwner(owner)
	_, err := p.Handle(context.Background(), command.EnsureWindowCommand{OwnerID: owner, FromYear: from, ToYear: to})
	require.NoError(t, err)

	terms, err := store.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	byName := make(map[string]*term.Term, len(terms))
	for _, tm := range terms {
		byName[tm.Name] = tm
	}
	return byName
}

func names(t *testing.T, store *memory.Store, owner string) []string {
	t.Helper()
	terms, err := store.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	out := make([]string, 0, len(terms))
	for _, tm := range terms {
		out = append(out, tm.Name)
	}
	return out
}

func newRollover(store *memory.Store, p *command.ProvisionTermsHandler) *TermRolloverJob {
	return NewTermRolloverJob(store, store, p, TermRolloverConfig{
		Concurrency: 2,
		Clock:       timeutil.FixedClock(rolloverNow),
	}, nil)
}

func TestTermRollover_ExtendsAndRetiresOldestYear(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	byName := seed(t, store, p, "owner-a", 2024, 2025)

	// A fall term with coursework blocks its own deletion only.
	store.AddCoursework(byName["2024년 2학기"].ID, 2)

	job := newRollover(store, p)
	stats, err := job.RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Owners)
	assert.Equal(t, 1, stats.Extended)
	assert.Equal(t, 4, stats.TermsCreated)
	assert.Equal(t, 3, stats.TermsRetired)
	assert.Equal(t, 1, stats.TermsKept)
	assert.Zero(t, stats.Failed)

	assert.Equal(t, []string{
		"2024년 2학기",
		"2025년 1학기", "2025년 여름학기", "2025년 2학기", "2025년 겨울학기",
		"2026년 1학기", "2026년 여름학기", "2026년 2학기", "2026년 겨울학기",
	}, names(t, store, "owner-a"))

	assert.Same(t, stats, job.LastStats())
	assert.Equal(t, stats, job.LastReport())
}

func TestTermRollover_StampsNewTermsFromCalendar(t *testing.T) {
	store := memory.NewStore()
	snap := calendar.Ingest([]calendar.Row{{Year: "2026", Month: "3", Day: "3", Label: "2026학년도 1학기 개강"}}, "", nil)
	p := newProvisioner(store, snap)
	seed(t, store, p, "owner-a", 2025, 2025)

	_, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)

	terms, err := store.ListByOwner(context.Background(), "owner-a")
	require.NoError(t, err)
	var spring *term.Term
	for _, tm := range terms {
		if tm.Name == "2026년 1학기" {
			spring = tm
		}
	}
	require.NotNil(t, spring)
	assert.Equal(t, timeutil.Date(2026, time.March, 3), *spring.StartDate)
	assert.Equal(t, term.StartSourceCalendar, spring.StartSource)
}

func TestTermRollover_RerunIsNoOp(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	byName := seed(t, store, p, "owner-a", 2024, 2025)
	for _, n := range []string{"2024년 1학기", "2024년 여름학기", "2024년 2학기", "2024년 겨울학기"} {
		store.AddCoursework(byName[n].ID, 1)
	}

	job := newRollover(store, p)
	_, err := job.RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	before := names(t, store, "owner-a")

	stats, err := job.RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Zero(t, stats.Extended)
	assert.Zero(t, stats.TermsCreated)
	assert.Zero(t, stats.TermsRetired)
	assert.Equal(t, 4, stats.TermsKept)
	assert.Equal(t, before, names(t, store, "owner-a"))
}

func TestTermRollover_NewOwnerKeepsFreshYear(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	store.AddOwner("owner-empty")

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TermsCreated)
	assert.Zero(t, stats.TermsRetired)
	assert.Len(t, names(t, store, "owner-empty"), 4)
}

func TestTermRollover_CourseworkAddedBeforeDeleteIsKept(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	byName := seed(t, store, p, "owner-a", 2024, 2025)
	spring := byName["2024년 1학기"].ID

	// Coursework lands on the spring term after its check but before its delete.
	var once atomic.Bool
	store.FailOn = func(op, owner string) error {
		if op == memory.OpDelete && once.CompareAndSwap(false, true) {
			store.AddCoursework(spring, 1)
		}
		return nil
	}

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 3, stats.TermsRetired)
	assert.Equal(t, 1, stats.TermsKept)
	assert.Contains(t, names(t, store, "owner-a"), "2024년 1학기")
}

func TestTermRollover_VanishedTermIsNotCounted(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	seed(t, store, p, "owner-a", 2024, 2025)

	store.FailOn = func(op, owner string) error {
		if op == memory.OpDelete {
			return term.ErrTermNotFound
		}
		return nil
	}

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.TermsRetired)
	assert.Zero(t, stats.TermsKept)
	assert.Equal(t, 4, stats.TermsCreated)
}

func TestTermRollover_IsolatesOwnerFailures(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	seed(t, store, p, "owner-a", 2024, 2025)
	seed(t, store, p, "owner-b", 2024, 2025)
	seed(t, store, p, "owner-c", 2024, 2025)
	before := names(t, store, "owner-b")

	boom := errors.New("disk on fire")
	store.FailOn = func(op, owner string) error {
		if owner == "owner-b" && op == memory.OpDelete {
			return boom
		}
		return nil
	}

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Owners)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "owner-b", stats.Errors[0].OwnerID)
	assert.Equal(t, TermRolloverJobName, stats.Errors[0].Job)
	assert.ErrorIs(t, &stats.Errors[0], boom)

	// owner-b's extension was rolled back together with the failed delete.
	assert.Equal(t, before, names(t, store, "owner-b"))
	assert.Len(t, names(t, store, "owner-a"), 8)
	assert.Len(t, names(t, store, "owner-c"), 8)
}

func TestTermRollover_ContainsPanics(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	seed(t, store, p, "owner-a", 2024, 2025)
	seed(t, store, p, "owner-b", 2024, 2025)

	store.FailOn = func(op, owner string) error {
		if owner == "owner-a" && op == memory.OpHasCoursework {
			panic("unexpected nil")
		}
		return nil
	}

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, &stats.Errors[0], ErrOwnerPanicked)
	assert.Len(t, names(t, store, "owner-a"), 8)
	assert.Len(t, names(t, store, "owner-b"), 8)
}

func TestTermRollover_FailsWhenEveryOwnerFails(t *testing.T) {
	store := memory.NewStore()
	p := newProvisioner(store, calendar.Snapshot{})
	seed(t, store, p, "owner-a", 2025, 2025)
	store.FailOn = func(op, owner string) error {
		if op == memory.OpExists {
			return errors.New("unavailable")
		}
		return nil
	}

	stats, err := newRollover(store, p).RunAt(context.Background(), rolloverNow)
	assert.ErrorIs(t, err, ErrAllOwnersFailed)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Failed)
}

func TestTermRollover_FailsWhenOwnersCannotBeListed(t *testing.T) {
	store := memory.NewStore()
	store.FailOn = func(op, owner string) error {
		if op == memory.OpListOwners {
			return errors.New("unavailable")
		}
		return nil
	}

	job := newRollover(store, newProvisioner(store, calendar.Snapshot{}))
	assert.Error(t, job.Run(context.Background()))
	assert.Nil(t, job.LastReport())
}

func TestTermBackfill_RestampsFallbackDates(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, newProvisioner(store, calendar.Snapshot{}), "owner-a", 2025, 2025)

	// The calendar now knows when fall starts.
	snap := calendar.Ingest([]calendar.Row{{Year: "2025", Month: "9", Day: "2", Label: "2학기 개강"}}, "", nil)
	job := NewTermBackfillJob(store, newProvisioner(store, snap), 2, nil)

	stats, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Restamped)
	assert.Equal(t, 3, stats.Unchanged)

	stats, err = job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Restamped)
	assert.Equal(t, stats, job.LastReport())
}

func TestCalendarReloadJob(t *testing.T) {
	rows := []calendar.Row{{Year: "2026", Month: "3", Day: "2", Label: "개강"}}
	var fail atomic.Bool
	src := calendar.SourceFunc(func(ctx context.Context) ([]calendar.Row, error) {
		if fail.Load() {
			return nil, errors.New("feed down")
		}
		return rows, nil
	})
	holder := calendar.NewHolder(src, "", nil)
	job := NewCalendarReloadJob(holder, nil)
	assert.Nil(t, job.LastReport())

	require.NoError(t, job.Run(context.Background()))
	got, ok := holder.Lookup("2026-03")
	require.True(t, ok)
	assert.Equal(t, timeutil.Date(2026, time.March, 2), got)

	report, ok := job.LastReport().(*CalendarReloadStats)
	require.True(t, ok)
	assert.Equal(t, []string{"2026-03"}, report.Keys)

	fail.Store(true)
	assert.Error(t, job.Run(context.Background()))
	_, ok = holder.Lookup("2026-03")
	assert.True(t, ok)
}
