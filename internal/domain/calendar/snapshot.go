// Package calendar turns raw academic-calendar rows into an immutable
// snapshot of term start dates keyed by "YYYY-MM".
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/campusnote/termcycle/internal/domain/shared"
)

// DefaultStartMarker is the label fragment that marks a term-start event.
const DefaultStartMarker = "개강"

// ErrMalformedRow is reported for rows whose date fields cannot be parsed.
var ErrMalformedRow = shared.NewDomainError("calendar", "Ingest", shared.ErrInvalidFormat, "malformed calendar row")

// Row is one event from the institutional calendar feed, as read.
type Row struct {
	Year  string
	Month string
	Day   string
	Label string
}

// Logger is the subset of the application logger used during ingestion.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

// Key returns the term key for a year and month, e.g. "2025-03".
func Key(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// Snapshot is an immutable term-key to start-date map.
// The zero value is an empty snapshot.
type Snapshot struct {
	dates map[string]time.Time
}

// NewSnapshot copies dates into a new snapshot.
func NewSnapshot(dates map[string]time.Time) Snapshot {
	m := make(map[string]time.Time, len(dates))
	for k, v := range dates {
		m[k] = v
	}
	return Snapshot{dates: m}
}

// Lookup returns the start date recorded for key.
func (s Snapshot) Lookup(key string) (time.Time, bool) {
	d, ok := s.dates[key]
	return d, ok
}

// Len returns the number of keys.
func (s Snapshot) Len() int {
	return len(s.dates)
}

// Keys returns the keys in ascending order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.dates))
	for k := range s.dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ingest builds a snapshot from rows whose label contains marker.
// An empty marker means DefaultStartMarker. Rows with non-numeric or
// impossible dates are logged and skipped. For a repeated key the
// earliest date wins.
func Ingest(rows []Row, marker string, log Logger) Snapshot {
	if marker == "" {
		marker = DefaultStartMarker
	}

	dates := make(map[string]time.Time)
	for i, row := range rows {
		if !strings.Contains(row.Label, marker) {
			continue
		}
		date, err := ParseRowDate(row)
		if err != nil {
			if log != nil {
				log.Warn("skipping calendar row", "row", i, "label", row.Label, "error", err)
			}
			continue
		}
		key := Key(date.Year(), int(date.Month()))
		if prev, ok := dates[key]; !ok || date.Before(prev) {
			dates[key] = date
		}
	}
	return Snapshot{dates: dates}
}

// ParseRowDate parses the year, month and day fields of a row into a
// UTC midnight date. Normalised dates such as Feb 30 are rejected.
func ParseRowDate(row Row) (time.Time, error) {
	year, err := strconv.Atoi(strings.TrimSpace(row.Year))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: year %q", ErrMalformedRow, row.Year)
	}
	month, err := strconv.Atoi(strings.TrimSpace(row.Month))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q", ErrMalformedRow, row.Month)
	}
	day, err := strconv.Atoi(strings.TrimSpace(row.Day))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrMalformedRow, row.Day)
	}
	if year < 1 || year > 9999 {
		return time.Time{}, fmt.Errorf("%w: year %d out of range", ErrMalformedRow, year)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, fmt.Errorf("%w: no such date %d-%d-%d", ErrMalformedRow, year, month, day)
	}
	return date, nil
}
