package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/internal/infrastructure/persistence/memory"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

func TestBackfill_RestampsFromCalendar(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	// Provisioned before the calendar was available.
	_, err := newHandler(t, store, calendar.Snapshot{}, time.Now()).
		Handle(ctx, EnsureWindowCommand{OwnerID: "o-1", FromYear: 2025, ToYear: 2025})
	require.NoError(t, err)

	store.Put(&term.Term{ID: "legacy", OwnerID: "o-1", Name: "2024년 2학기", Year: 2024, Season: term.SeasonFall})

	snap := calendar.Ingest([]calendar.Row{
		{Year: "2025", Month: "3", Day: "3", Label: "1학기 개강"},
		{Year: "2025", Month: "9", Day: "1", Label: "2학기 개강"},
	}, "", nil)
	h := newHandler(t, store, snap, time.Now())

	res, err := h.Backfill(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Restamped, "spring and fall from calendar, legacy fall from fallback")

	legacy, err := store.GetByID(ctx, "o-1", "legacy")
	require.NoError(t, err)
	require.True(t, legacy.HasStart())
	assert.Equal(t, timeutil.Date(2024, time.September, 1), *legacy.StartDate)
	assert.Equal(t, term.StartSourceFallback, legacy.StartSource)

	terms, _ := store.ListByOwner(ctx, "o-1")
	for _, tm := range terms {
		if tm.Year == 2025 && tm.Season == term.SeasonSpring {
			assert.Equal(t, timeutil.Date(2025, time.March, 3), *tm.StartDate)
			assert.Equal(t, term.StartSourceCalendar, tm.StartSource)
		}
	}

	again, err := h.Backfill(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Restamped)
}

func TestBackfill_NeverOverwritesCalendarDates(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := timeutil.Date(2025, time.March, 4)
	store.Put(&term.Term{
		ID: "t", OwnerID: "o-1", Name: "2025년 1학기", Year: 2025, Season: term.SeasonSpring,
		StartDate: &start, StartSource: term.StartSourceCalendar,
	})

	snap := calendar.Ingest([]calendar.Row{{Year: "2025", Month: "3", Day: "2", Label: "개강"}}, "", nil)
	res, err := newHandler(t, store, snap, time.Now()).Backfill(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Restamped)

	got, _ := store.GetByID(ctx, "o-1", "t")
	assert.Equal(t, start, *got.StartDate)
}

func TestBackfill_KeepsLegacyDateWithoutCalendar(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	start := timeutil.Date(2023, time.March, 6)
	store.Put(&term.Term{
		ID: "t", OwnerID: "o-1", Name: "2023년 1학기", Year: 2023, Season: term.SeasonSpring,
		StartDate: &start,
	})

	res, err := newHandler(t, store, calendar.Snapshot{}, time.Now()).Backfill(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Restamped)
	assert.Equal(t, 1, res.Unchanged)
}
