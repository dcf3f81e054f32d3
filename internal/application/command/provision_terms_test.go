package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/memory"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

func sequentialIDs() func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("term-%03d", n)
	}
}

func newHandler(t *testing.T, store *memory.Store, snap calendar.Snapshot, now time.Time) *ProvisionTermsHandler {
	t.Helper()
	return NewProvisionTermsHandler(store, term.NewStartResolver(snap), ProvisionTermsHandlerConfig{
		FirstYear:  2020,
		YearsAhead: 1,
		Clock:      timeutil.FixedClock(now),
		NewID:      sequentialIDs(),
	}, nil)
}

func TestEnsureWindow_CreatesFourTermsPerYear(t *testing.T) {
	store := memory.NewStore()
	snap := calendar.Ingest([]calendar.Row{{Year: "2025", Month: "3", Day: "4", Label: "개강"}}, "", nil)
	h := newHandler(t, store, snap, time.Now())

	res, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2025, ToYear: 2026})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Created)
	assert.Equal(t, 0, res.Existing)

	terms, err := store.ListByOwner(context.Background(), "o-1")
	require.NoError(t, err)
	require.Len(t, terms, 8)

	byName := make(map[string]*term.Term)
	for _, tm := range terms {
		byName[tm.Name] = tm
	}
	spring := byName["2025년 1학기"]
	require.NotNil(t, spring)
	assert.Equal(t, timeutil.Date(2025, time.March, 4), *spring.StartDate)
	assert.Equal(t, term.StartSourceCalendar, spring.StartSource)

	winter := byName["2026년 겨울학기"]
	require.NotNil(t, winter)
	assert.Equal(t, timeutil.Date(2026, time.December, 20), *winter.StartDate)
	assert.Equal(t, term.StartSourceFallback, winter.StartSource)
}

func TestEnsureWindow_Idempotent(t *testing.T) {
	store := memory.NewStore()
	h := newHandler(t, store, calendar.Snapshot{}, time.Now())
	cmd := EnsureWindowCommand{OwnerID: "o-1", FromYear: 2024, ToYear: 2025}

	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	before, _ := store.ListByOwner(context.Background(), "o-1")

	res, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 8, res.Existing)

	after, _ := store.ListByOwner(context.Background(), "o-1")
	assert.Equal(t, before, after)
}

func TestEnsureWindow_SixYearsTwice(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.April, 1, 9, 0, 0, 0, timeutil.SeoulTZ)
	h := newHandler(t, store, calendar.Snapshot{}, now)
	cmd := EnsureWindowCommand{OwnerID: "o-1", FromYear: 2020, ToYear: 2025}

	res, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 24, res.Created)

	res, err = h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 24, res.Existing)

	terms, err := store.ListByOwner(context.Background(), "o-1")
	require.NoError(t, err)
	require.Len(t, terms, 24)
	for _, tm := range terms {
		assert.True(t, now.Equal(tm.CreatedAt), "%s created at %s", tm.Name, tm.CreatedAt)
	}
}

func TestEnsureWindow_SingleYear(t *testing.T) {
	store := memory.NewStore()
	h := newHandler(t, store, calendar.Snapshot{}, time.Now())

	res, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2027, ToYear: 2027})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
}

func TestEnsureWindow_Validation(t *testing.T) {
	h := newHandler(t, memory.NewStore(), calendar.Snapshot{}, time.Now())

	_, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2026, ToYear: 2025})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	_, err = h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "", FromYear: 2025, ToYear: 2025})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestEnsureWindow_DuplicateConstraintIsNotFatal(t *testing.T) {
	store := memory.NewStore()
	store.FailOn = func(op, _ string) error {
		if op == memory.OpInsert {
			return term.ErrTermAlreadyExists
		}
		return nil
	}
	h := newHandler(t, store, calendar.Snapshot{}, time.Now())

	res, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2025, ToYear: 2025})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 4, res.Existing)
}

func TestEnsureWindow_ConcurrentWriterTreatedAsExisting(t *testing.T) {
	store := memory.NewStore()
	// Another instance provisioned the spring term after our read.
	store.FailOn = func(op, _ string) error {
		if op == memory.OpInsert {
			store.FailOn = nil
			store.Put(&term.Term{ID: "other", OwnerID: "o-1", Name: term.DisplayName(2025, term.SeasonSpring), Year: 2025, Season: term.SeasonSpring})
		}
		return nil
	}
	h := newHandler(t, store, calendar.Snapshot{}, time.Now())

	res, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2025, ToYear: 2025})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 1, res.Existing)

	terms, _ := store.ListByOwner(context.Background(), "o-1")
	assert.Len(t, terms, 4)
}

func TestEnsureWindow_UnexpectedFailureRollsBack(t *testing.T) {
	store := memory.NewStore()
	var inserts int
	store.FailOn = func(op, _ string) error {
		if op == memory.OpInsert {
			inserts++
			if inserts == 3 {
				return errors.New("connection reset")
			}
		}
		return nil
	}
	h := newHandler(t, store, calendar.Snapshot{}, time.Now())

	_, err := h.Handle(context.Background(), EnsureWindowCommand{OwnerID: "o-1", FromYear: 2025, ToYear: 2025})
	require.Error(t, err)

	store.FailOn = nil
	terms, _ := store.ListByOwner(context.Background(), "o-1")
	assert.Empty(t, terms)
}

func TestRegistrationWindow(t *testing.T) {
	now := time.Date(2025, time.May, 5, 12, 0, 0, 0, timeutil.SeoulTZ)
	store := memory.NewStore()
	h := newHandler(t, store, calendar.Snapshot{}, now)

	lo, hi := h.RegistrationWindow(now)
	assert.Equal(t, 2020, lo)
	assert.Equal(t, 2026, hi)

	lo, hi = h.RegistrationWindow(time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 2011, lo)
	assert.Equal(t, 2011, hi)

	res, err := h.ProvisionForNewOwner(context.Background(), "o-new")
	require.NoError(t, err)
	assert.Equal(t, 7*4, res.Created)
}
