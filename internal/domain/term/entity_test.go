package term

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTerm(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	tm, err := NewTerm(NewTermParams{
		ID:          "t-1",
		OwnerID:     "owner-1",
		Year:        2025,
		Season:      SeasonFall,
		StartDate:   time.Date(2025, time.September, 1, 8, 30, 0, 0, seoul),
		StartSource: StartSourceCalendar,
	})
	require.NoError(t, err)

	assert.Equal(t, "2025년 2학기", tm.Name)
	require.True(t, tm.HasStart())
	assert.Equal(t, day(2025, time.September, 1), *tm.StartDate)
	assert.False(t, tm.NeedsBackfill())
}

func TestNewTerm_Invalid(t *testing.T) {
	cases := []NewTermParams{
		{ID: "", OwnerID: "o", Year: 2025, Season: SeasonSpring},
		{ID: "t", OwnerID: " ", Year: 2025, Season: SeasonSpring},
		{ID: "t", OwnerID: "o", Year: 2025, Season: Season("spring ")},
		{ID: "t", OwnerID: "o", Year: 0, Season: SeasonSpring},
	}
	for _, p := range cases {
		_, err := NewTerm(p)
		assert.ErrorIs(t, err, ErrInvalidTerm)
	}
}

func TestTerm_EffectiveStartAndRestamp(t *testing.T) {
	tm := mkTerm("t", 2025, SeasonSummer, nil)
	assert.Equal(t, day(2025, time.June, 20), tm.EffectiveStart())
	assert.True(t, tm.NeedsBackfill())

	assert.True(t, tm.Restamp(day(2025, time.June, 20), StartSourceFallback))
	assert.True(t, tm.NeedsBackfill())
	assert.False(t, tm.Restamp(day(2025, time.June, 20), StartSourceFallback))

	assert.True(t, tm.Restamp(day(2025, time.June, 23), StartSourceCalendar))
	assert.False(t, tm.NeedsBackfill())
	assert.Equal(t, day(2025, time.June, 23), tm.EffectiveStart())
}
