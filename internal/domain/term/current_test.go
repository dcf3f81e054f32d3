package term

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTerm(id string, year int, season Season, start *time.Time) *Term {
	return &Term{
		ID:        id,
		OwnerID:   "owner-1",
		Name:      DisplayName(year, season),
		Year:      year,
		Season:    season,
		StartDate: start,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func TestCurrentResolver_Containment(t *testing.T) {
	r := NewCurrentResolver(16)
	spring := mkTerm("a", 2025, SeasonSpring, ptr(day(2025, time.March, 3)))
	fall := mkTerm("b", 2025, SeasonFall, ptr(day(2025, time.September, 1)))
	terms := []*Term{spring, fall}

	got, ok := r.Resolve(day(2025, time.April, 10), terms)
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)

	got, ok = r.Resolve(day(2025, time.September, 1), terms)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestCurrentResolver_SpringBeforeSummerStarts(t *testing.T) {
	r := NewCurrentResolver(16)
	terms := []*Term{
		mkTerm("spring", 2025, SeasonSpring, ptr(day(2025, time.March, 4))),
		mkTerm("summer", 2025, SeasonSummer, ptr(day(2025, time.June, 24))),
	}

	got, ok := r.Resolve(day(2025, time.April, 1), terms)
	require.True(t, ok)
	assert.Equal(t, "spring", got.ID)
	assert.Equal(t, "2025년 1학기", got.Name)
}

func TestCurrentResolver_StaleTermsFallBackToLatest(t *testing.T) {
	r := NewCurrentResolver(16)
	var terms []*Term
	for _, year := range []int{2020, 2021} {
		for _, s := range Seasons() {
			terms = append(terms, mkTerm(DisplayName(year, s), year, s, ptr(s.FallbackDate(year))))
		}
	}

	got, ok := r.Resolve(day(2025, time.April, 1), terms)
	require.True(t, ok)
	assert.Equal(t, "2021년 겨울학기", got.Name)
}

func TestCurrentResolver_WindowEndIsExclusive(t *testing.T) {
	r := NewCurrentResolver(16)
	spring := mkTerm("a", 2025, SeasonSpring, ptr(day(2025, time.March, 3)))
	winter := mkTerm("w", 2024, SeasonWinter, ptr(day(2024, time.December, 20)))

	lastDay := day(2025, time.March, 3).AddDate(0, 0, 16*7-1)
	assert.True(t, r.Contains(spring, lastDay))
	assert.False(t, r.Contains(spring, lastDay.AddDate(0, 0, 1)))

	// Outside every window: falls back to the latest term.
	got, ok := r.Resolve(lastDay.AddDate(0, 0, 1), []*Term{winter, spring})
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestCurrentResolver_FallbackOrdering(t *testing.T) {
	r := NewCurrentResolver(16)
	terms := []*Term{
		mkTerm("s24", 2024, SeasonSpring, ptr(day(2024, time.March, 4))),
		mkTerm("w24", 2024, SeasonWinter, ptr(day(2024, time.December, 20))),
		mkTerm("f24", 2024, SeasonFall, ptr(day(2024, time.September, 2))),
		mkTerm("u24", 2024, SeasonSummer, ptr(day(2024, time.June, 20))),
	}

	// Jan 2020 is before every window.
	got, ok := r.Resolve(day(2020, time.January, 15), terms)
	require.True(t, ok)
	assert.Equal(t, "w24", got.ID)
}

func TestCurrentResolver_UnknownSeasonSortsLast(t *testing.T) {
	r := NewCurrentResolver(16)
	odd := mkTerm("odd", 2024, Season("intersession"), ptr(day(2030, time.January, 1)))
	spring := mkTerm("s", 2024, SeasonSpring, ptr(day(2030, time.March, 1)))

	got, ok := r.Resolve(day(2000, time.January, 1), []*Term{odd, spring})
	require.True(t, ok)
	assert.Equal(t, "s", got.ID)
}

func TestCurrentResolver_Empty(t *testing.T) {
	r := NewCurrentResolver(0)
	got, ok := r.Resolve(day(2025, time.March, 3), nil)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, DefaultContainmentWeeks, r.Weeks())
}

func TestCurrentResolver_OverlapLatestStartWins(t *testing.T) {
	r := NewCurrentResolver(16)
	spring := mkTerm("s", 2025, SeasonSpring, ptr(day(2025, time.March, 3)))
	summer := mkTerm("u", 2025, SeasonSummer, ptr(day(2025, time.June, 20)))
	today := day(2025, time.June, 21)

	require.True(t, r.Contains(spring, today))
	require.True(t, r.Contains(summer, today))

	got, _ := r.Resolve(today, []*Term{spring, summer})
	assert.Equal(t, "u", got.ID)
	got, _ = r.Resolve(today, []*Term{summer, spring})
	assert.Equal(t, "u", got.ID)
}

func TestCurrentResolver_NilStartUsesSeasonFallback(t *testing.T) {
	r := NewCurrentResolver(16)
	fall := mkTerm("f", 2025, SeasonFall, nil)
	spring := mkTerm("s", 2025, SeasonSpring, ptr(day(2025, time.March, 3)))

	got, ok := r.Resolve(day(2025, time.September, 10), []*Term{spring, fall})
	require.True(t, ok)
	assert.Equal(t, "f", got.ID)
}

func TestCurrentResolver_DateOnlyComparison(t *testing.T) {
	r := NewCurrentResolver(16)
	spring := mkTerm("s", 2025, SeasonSpring, ptr(day(2025, time.March, 3)))
	seoul := time.FixedZone("KST", 9*60*60)

	// Early morning Mar 3 in Seoul is still Mar 2 in UTC.
	assert.True(t, r.Contains(spring, time.Date(2025, time.March, 3, 1, 0, 0, 0, seoul)))
	assert.False(t, r.Contains(spring, time.Date(2025, time.March, 2, 23, 59, 0, 0, seoul)))
}

func TestSortLatestFirst(t *testing.T) {
	terms := []*Term{
		mkTerm("a", 2023, SeasonFall, nil),
		nil,
		mkTerm("b", 2024, SeasonSpring, nil),
		mkTerm("c", 2024, SeasonFall, nil),
	}
	got := SortLatestFirst(terms)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "a", terms[0].ID, "input untouched")
}
