package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule is a standard five-field cron expression evaluated in a
// fixed location.
type CronSchedule struct {
	expr     string
	location *time.Location
	schedule cron.Schedule
}

// ParseCron parses a standard cron expression ("0 3 1 12 *") or a
// descriptor ("@daily"). A nil location means UTC.
func ParseCron(expr string, loc *time.Location) (*CronSchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &CronSchedule{expr: expr, location: loc, schedule: sched}, nil
}

// Next returns the next activation strictly after t.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// String returns the expression with its location.
func (s *CronSchedule) String() string {
	return fmt.Sprintf("%s (%s)", s.expr, s.location)
}
