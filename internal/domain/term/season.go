// Package term содержит доменную модель учебного семестра.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package term

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON
// ══════════════════════════════════════════════════════════════════════════════

// Season определяет один из четырёх семестров учебного года.
// Нулевое значение - нераспознанный семестр.
type Season string

const (
	// SeasonSpring - весенний семестр (1학기).
	SeasonSpring Season = "spring"
	// SeasonSummer - летняя сессия (여름학기).
	SeasonSummer Season = "summer"
	// SeasonFall - осенний семестр (2학기).
	SeasonFall Season = "fall"
	// SeasonWinter - зимняя сессия (겨울학기).
	SeasonWinter Season = "winter"
)

// Seasons возвращает все семестры в порядке создания внутри года.
func Seasons() []Season {
	return []Season{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter}
}

type seasonInfo struct {
	text     string
	rank     int
	month    time.Month
	fallback time.Month
	day      int
}

var seasonTable = map[Season]seasonInfo{
	SeasonSpring: {text: "1학기", rank: 1, month: time.March, fallback: time.March, day: 1},
	SeasonSummer: {text: "여름학기", rank: 2, month: time.June, fallback: time.June, day: 20},
	SeasonFall:   {text: "2학기", rank: 3, month: time.September, fallback: time.September, day: 1},
	SeasonWinter: {text: "겨울학기", rank: 4, month: time.December, fallback: time.December, day: 20},
}

// IsValid проверяет, что семестр входит в закрытое множество.
func (s Season) IsValid() bool {
	_, ok := seasonTable[s]
	return ok
}

// String возвращает код семестра.
func (s Season) String() string {
	return string(s)
}

// Text возвращает отображаемое название семестра ("1학기", "여름학기", ...).
// Для нераспознанного семестра возвращается код как есть.
func (s Season) Text() string {
	if info, ok := seasonTable[s]; ok {
		return info.text
	}
	return string(s)
}

// Rank возвращает порядок семестра внутри года: весна 1, лето 2, осень 3, зима 4.
// Нераспознанный семестр имеет ранг 0 и сортируется последним.
func (s Season) Rank() int {
	return seasonTable[s].rank
}

// Month возвращает месяц, по которому ищется дата начала в календаре.
// Для нераспознанного семестра возвращается 0.
func (s Season) Month() time.Month {
	return seasonTable[s].month
}

// FallbackDate возвращает статическую дату начала семестра,
// если в календаре нет данных. Нераспознанный семестр начинается 1 января.
func (s Season) FallbackDate(year int) time.Time {
	info, ok := seasonTable[s]
	if !ok {
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, info.fallback, info.day, 0, 0, 0, 0, time.UTC)
}

// ParseSeason разбирает код ("spring") или отображаемое название ("1학기").
// Совпадение только точное, подстроки не допускаются.
func ParseSeason(s string) (Season, error) {
	if Season(s).IsValid() {
		return Season(s), nil
	}
	for season, info := range seasonTable {
		if info.text == s {
			return season, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSeason, s)
}

// DisplayName возвращает имя семестра, уникальное для владельца,
// например "2025년 1학기".
func DisplayName(year int, season Season) string {
	return fmt.Sprintf("%d년 %s", year, season.Text())
}
