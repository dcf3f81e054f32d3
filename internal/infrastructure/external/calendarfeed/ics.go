package calendarfeed

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/campusnote/termcycle/internal/domain/calendar"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// ParseICS turns VEVENTs into rows: the DTSTART date gives year, month and
// day, SUMMARY gives the label. UTC timestamps are shifted to loc (nil means
// Seoul) before the date is taken. Events without DTSTART are skipped.
func ParseICS(r io.Reader, loc *time.Location) ([]calendar.Row, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	var rows []calendar.Row
	for _, event := range cal.Events() {
		start := event.GetProperty(ics.ComponentPropertyDtStart)
		if start == nil {
			continue
		}

		label := ""
		if summary := event.GetProperty(ics.ComponentPropertySummary); summary != nil {
			label = strings.TrimSpace(summary.Value)
		}

		year, month, day, ok := icsDate(event, start.Value, loc)
		if !ok {
			// Ingest reports the row as malformed.
			rows = append(rows, calendar.Row{Year: start.Value, Label: label})
			continue
		}
		rows = append(rows, calendar.Row{Year: year, Month: month, Day: day, Label: label})
	}
	return rows, nil
}

func icsDate(event *ics.VEvent, value string, loc *time.Location) (string, string, string, bool) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "Z") {
		at, err := event.GetStartAt()
		if err != nil {
			return "", "", "", false
		}
		d := timeutil.Today(at, loc)
		return strconv.Itoa(d.Year()), strconv.Itoa(int(d.Month())), strconv.Itoa(d.Day()), true
	}
	if len(value) < 8 {
		return "", "", "", false
	}
	return value[0:4], value[4:6], value[6:8], true
}
