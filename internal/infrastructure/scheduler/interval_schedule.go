package scheduler

import "time"

// IntervalSchedule fires every Interval after the previous run. The
// backfill and calendar reload jobs use it. A non-positive interval never
// fires, which is how those jobs are switched off in configuration.
type IntervalSchedule struct {
	Interval time.Duration
}

func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if s.Interval <= 0 {
		return time.Time{}
	}
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	if s.Interval <= 0 {
		return "never"
	}
	return "@every " + s.Interval.String()
}
