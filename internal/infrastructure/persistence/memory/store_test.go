package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusnote/termcycle/internal/domain/term"
)

func newTerm(t *testing.T, id string, year int, season term.Season) *term.Term {
	t.Helper()
	tm, err := term.NewTerm(term.NewTermParams{
		ID:          id,
		OwnerID:     "owner-a",
		Year:        year,
		Season:      season,
		StartDate:   season.FallbackDate(year),
		StartSource: term.StartSourceFallback,
		CreatedAt:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return tm
}

func TestStore_DeleteRefusesTermWithCoursework(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Put(newTerm(t, "t-1", 2025, term.SeasonSpring))
	s.AddCoursework("t-1", 1)

	assert.ErrorIs(t, s.Delete(ctx, "t-1"), term.ErrTermInUse)
	_, err := s.GetByID(ctx, "owner-a", "t-1")
	require.NoError(t, err)

	s.Put(newTerm(t, "t-2", 2025, term.SeasonSummer))
	require.NoError(t, s.Delete(ctx, "t-2"))
	assert.ErrorIs(t, s.Delete(ctx, "t-2"), term.ErrTermNotFound)
}

func TestStore_WithinOwnerRestoresOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	s.Put(newTerm(t, "t-1", 2025, term.SeasonSpring))

	boom := errors.New("boom")
	err := s.WithinOwner(ctx, "owner-a", func(ctx context.Context, stores term.TxStores) error {
		if err := stores.Terms.Delete(ctx, "t-1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetByID(ctx, "owner-a", "t-1")
	assert.NoError(t, err)
}
