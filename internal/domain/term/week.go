package term

import (
	"fmt"
	"time"
)

const (
	minYear = 1
	maxYear = 9999

	// maxWeekOffset ограничивает сдвиг так, чтобы умножение на 7 не переполняло int.
	maxWeekOffset = (maxYear + 1) * 366 / 7

	secondsPerDay = 24 * 60 * 60
)

// WeekRange возвращает первый и последний день недели n, считая от start.
// Неделя 1 начинается в start. Номер не ограничивается: 0 и отрицательные
// значения дают недели до начала семестра.
func WeekRange(start time.Time, n int) (time.Time, time.Time) {
	weekStart := DateOf(start).AddDate(0, 0, (n-1)*7)
	return weekStart, weekStart.AddDate(0, 0, 6)
}

// SafeWeekRange работает как WeekRange, но возвращает ok=false,
// если результат выходит за годы 1..9999.
func SafeWeekRange(start time.Time, n int) (time.Time, time.Time, bool) {
	if n < -maxWeekOffset || n > maxWeekOffset {
		return time.Time{}, time.Time{}, false
	}

	weekStart, weekEnd := WeekRange(start, n)
	if !inRange(weekStart) || !inRange(weekEnd) {
		return time.Time{}, time.Time{}, false
	}
	return weekStart, weekEnd, true
}

// CheckedWeekRange возвращает ErrDateOverflow вместо некорректной даты.
func CheckedWeekRange(start time.Time, n int) (time.Time, time.Time, error) {
	weekStart, weekEnd, ok := SafeWeekRange(start, n)
	if !ok {
		return time.Time{}, time.Time{}, ErrDateOverflow
	}
	return weekStart, weekEnd, nil
}

// WeekOf возвращает номер недели, в которую попадает date.
// 0 - дата раньше начала семестра. Верхней границы нет.
func WeekOf(start, date time.Time) int {
	s, d := DateOf(start), DateOf(date)
	if d.Before(s) {
		return 0
	}
	days := (d.Unix() - s.Unix()) / secondsPerDay
	return int(days/7) + 1
}

// WeekLabel возвращает подпись недели "MM.DD ~ MM.DD".
// Если дата выходит за допустимый диапазон, возвращается "N주차".
func WeekLabel(start time.Time, n int) string {
	weekStart, weekEnd, ok := SafeWeekRange(start, n)
	if !ok {
		return fmt.Sprintf("%d주차", n)
	}
	return weekStart.Format("01.02") + " ~ " + weekEnd.Format("01.02")
}

func inRange(t time.Time) bool {
	return t.Year() >= minYear && t.Year() <= maxYear
}
