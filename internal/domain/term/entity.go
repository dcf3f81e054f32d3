package term

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// StartSource описывает происхождение даты начала семестра.
type StartSource string

const (
	// StartSourceCalendar - дата взята из академического календаря.
	StartSourceCalendar StartSource = "calendar"
	// StartSourceFallback - статическая дата по умолчанию.
	StartSourceFallback StartSource = "fallback"
	// StartSourceUnknown - старые записи без информации о происхождении.
	StartSourceUnknown StartSource = ""
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: TERM
// ══════════════════════════════════════════════════════════════════════════════

// Term - учебный семестр одного владельца.
// На одного владельца существует не более одного Term на пару (Year, Season),
// а Name уникален в пределах владельца.
type Term struct {
	// ID - внутренний идентификатор (UUID).
	ID string

	// OwnerID - владелец семестра.
	OwnerID string

	// Name - отображаемое имя, производное от Year и Season.
	Name string

	// Year - календарный год.
	Year int

	// Season - семестр внутри года.
	Season Season

	// StartDate - дата начала (только дата, UTC полночь). nil - не определена.
	StartDate *time.Time

	// StartSource - откуда взята StartDate.
	StartSource StartSource

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// NewTermParams содержит параметры для создания семестра.
type NewTermParams struct {
	ID          string
	OwnerID     string
	Year        int
	Season      Season
	StartDate   time.Time
	StartSource StartSource
	CreatedAt   time.Time
}

// NewTerm создаёт семестр с вычисленным именем.
func NewTerm(params NewTermParams) (*Term, error) {
	if strings.TrimSpace(params.ID) == "" || strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrInvalidTerm
	}
	if !params.Season.IsValid() || params.Year < 1 || params.Year > 9999 {
		return nil, ErrInvalidTerm
	}

	start := DateOf(params.StartDate)
	return &Term{
		ID:          params.ID,
		OwnerID:     params.OwnerID,
		Name:        DisplayName(params.Year, params.Season),
		Year:        params.Year,
		Season:      params.Season,
		StartDate:   &start,
		StartSource: params.StartSource,
		CreatedAt:   params.CreatedAt,
	}, nil
}

// HasStart возвращает true, если дата начала определена.
func (t *Term) HasStart() bool {
	return t.StartDate != nil
}

// EffectiveStart возвращает дату начала, а при её отсутствии -
// статическую дату семестра.
func (t *Term) EffectiveStart() time.Time {
	if t.StartDate != nil {
		return DateOf(*t.StartDate)
	}
	return t.Season.FallbackDate(t.Year)
}

// NeedsBackfill возвращает true, если дату начала можно уточнить по календарю.
// Дата из календаря никогда не перезаписывается.
func (t *Term) NeedsBackfill() bool {
	return t.StartDate == nil || t.StartSource != StartSourceCalendar
}

// Restamp устанавливает новую дату начала.
// Возвращает false, если дата и источник не изменились.
func (t *Term) Restamp(start time.Time, source StartSource) bool {
	start = DateOf(start)
	if t.StartDate != nil && t.StartDate.Equal(start) && t.StartSource == source {
		return false
	}
	t.StartDate = &start
	t.StartSource = source
	return true
}

// DateOf отбрасывает время суток и возвращает ту же календарную дату
// в UTC полночь. Дата берётся в локации самого значения.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
