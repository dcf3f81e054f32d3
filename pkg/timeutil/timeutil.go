// Package timeutil provides campus timezone helpers.
// All term dates are calendar dates of the campus timezone, stored as
// UTC midnight values. The default campus is Seoul (UTC+9, no DST).
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLocationName is the campus timezone used when none is configured.
const DefaultLocationName = "Asia/Seoul"

// SeoulTZ is the Seoul timezone (UTC+9).
// Korea has not observed DST since 1988, so this is constant year-round.
var SeoulTZ = time.FixedZone(DefaultLocationName, 9*60*60)

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// LoadLocation resolves a timezone name. Seoul resolves without the tz
// database; other names go through time.LoadLocation.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	switch name {
	case "", DefaultLocationName:
		return SeoulTZ, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location.
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().In(SeoulTZ)
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// Date creates a UTC midnight date value.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of t in loc as a UTC midnight value.
func Today(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = SeoulTZ
	}
	y, m, d := t.In(loc).Date()
	return Date(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight value.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(FormatDate, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// FormatDateStr formats a date value as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}
