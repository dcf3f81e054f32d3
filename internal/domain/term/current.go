package term

import (
	"sort"
	"time"
)

// DefaultContainmentWeeks - длительность окна семестра по умолчанию.
const DefaultContainmentWeeks = 16

// CurrentResolver выбирает текущий семестр на заданную дату.
//
// Уровень 1: семестр, окно которого [start, start+N недель) содержит дату.
// При пересечении окон выигрывает семестр с более поздним началом.
// Уровень 2: самый поздний семестр по (год, ранг семестра).
type CurrentResolver struct {
	weeks int
}

// NewCurrentResolver создаёт резолвер с окном в weeks недель.
// Значение <= 0 заменяется на DefaultContainmentWeeks.
func NewCurrentResolver(weeks int) *CurrentResolver {
	if weeks <= 0 {
		weeks = DefaultContainmentWeeks
	}
	return &CurrentResolver{weeks: weeks}
}

// Weeks возвращает длину окна в неделях.
func (r *CurrentResolver) Weeks() int {
	return r.weeks
}

// Contains проверяет, попадает ли дата в окно семестра.
// Семестр без даты начала использует статическую дату своего семестра.
func (r *CurrentResolver) Contains(t *Term, today time.Time) bool {
	start := t.EffectiveStart()
	end := start.AddDate(0, 0, r.weeks*7)
	day := DateOf(today)
	return !day.Before(start) && day.Before(end)
}

// Resolve возвращает текущий семестр. Для пустого списка - (nil, false).
// Результат не зависит от порядка входных данных.
func (r *CurrentResolver) Resolve(today time.Time, terms []*Term) (*Term, bool) {
	var best *Term
	for _, t := range terms {
		if t == nil || !r.Contains(t, today) {
			continue
		}
		if best == nil || laterStart(t, best) {
			best = t
		}
	}
	if best != nil {
		return best, true
	}

	ordered := SortLatestFirst(terms)
	if len(ordered) == 0 {
		return nil, false
	}
	return ordered[0], true
}

func laterStart(a, b *Term) bool {
	as, bs := a.EffectiveStart(), b.EffectiveStart()
	if !as.Equal(bs) {
		return as.After(bs)
	}
	return latestFirst(a, b)
}

// SortLatestFirst возвращает копию списка, упорядоченную по
// (год убыв., ранг семестра убыв.). nil элементы отбрасываются.
func SortLatestFirst(terms []*Term) []*Term {
	out := make([]*Term, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return latestFirst(out[i], out[j])
	})
	return out
}

func latestFirst(a, b *Term) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if a.Season.Rank() != b.Season.Rank() {
		return a.Season.Rank() > b.Season.Rank()
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
