package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesCampusDate(t *testing.T) {
	// 15:30 UTC on Mar 2 is already Mar 3 in Seoul.
	instant := time.Date(2025, time.March, 2, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, Date(2025, time.March, 3), Today(instant, SeoulTZ))
	assert.Equal(t, Date(2025, time.March, 2), Today(instant, time.UTC))
	assert.Equal(t, Date(2025, time.March, 3), Today(instant, nil))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, SeoulTZ, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 2025-09-01 ")
	require.NoError(t, err)
	assert.Equal(t, Date(2025, time.September, 1), got)
	assert.Equal(t, "2025-09-01", FormatDateStr(got))

	_, err = ParseDate("2025-02-30")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, time.December, 1, 3, 0, 0, 0, SeoulTZ)
	assert.Equal(t, at, FixedClock(at).Now())
	assert.Equal(t, SeoulTZ, SystemClock{}.Now().Location())
}
