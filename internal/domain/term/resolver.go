package term

import (
	"time"

	"github.com/campusnote/termcycle/internal/domain/calendar"
)

// SnapshotProvider отдаёт дату начала семестра по ключу "YYYY-MM".
// Реализуется calendar.Snapshot и *calendar.Holder.
type SnapshotProvider interface {
	Lookup(key string) (time.Time, bool)
}

// StartResolver определяет дату начала семестра: сначала по календарю,
// затем по статической таблице. Resolve никогда не паникует.
type StartResolver struct {
	calendar SnapshotProvider
}

// NewStartResolver создаёт резолвер поверх снимка календаря.
// nil означает пустой календарь.
func NewStartResolver(provider SnapshotProvider) *StartResolver {
	if provider == nil {
		provider = calendar.Snapshot{}
	}
	return &StartResolver{calendar: provider}
}

// Resolve возвращает дату начала семестра.
func (r *StartResolver) Resolve(year int, season Season) time.Time {
	date, _ := r.ResolveWithSource(year, season)
	return date
}

// ResolveWithSource возвращает дату начала и её источник.
func (r *StartResolver) ResolveWithSource(year int, season Season) (time.Time, StartSource) {
	if season.IsValid() {
		if date, ok := r.calendar.Lookup(calendar.Key(year, int(season.Month()))); ok {
			return DateOf(date), StartSourceCalendar
		}
	}
	return season.FallbackDate(year), StartSourceFallback
}
