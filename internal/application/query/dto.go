// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// TermReader - доступ на чтение к семестрам владельца.
// Реализуется postgres.TermRepository вне транзакции.
type TermReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*term.Term, error)
	GetByID(ctx context.Context, ownerID, id string) (*term.Term, error)
}

// TermDTO - DTO семестра для внешних слоёв.
type TermDTO struct {
	// ID - внутренний ID семестра.
	ID string `json:"id"`

	// OwnerID - владелец.
	OwnerID string `json:"owner_id"`

	// Name - отображаемое имя ("2025년 1학기").
	Name string `json:"name"`

	// Year - год.
	Year int `json:"year"`

	// Season - код семестра ("spring").
	Season string `json:"season"`

	// SeasonText - отображаемое название семестра ("1학기").
	SeasonText string `json:"season_text"`

	// StartDate - дата начала в формате YYYY-MM-DD, пустая если не определена.
	StartDate string `json:"start_date,omitempty"`

	// StartSource - источник даты начала.
	StartSource string `json:"start_source,omitempty"`
}

// NewTermDTO создаёт DTO из доменной сущности.
func NewTermDTO(t *term.Term) TermDTO {
	dto := TermDTO{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Name:        t.Name,
		Year:        t.Year,
		Season:      t.Season.String(),
		SeasonText:  t.Season.Text(),
		StartSource: string(t.StartSource),
	}
	if t.StartDate != nil {
		dto.StartDate = timeutil.FormatDateStr(*t.StartDate)
	}
	return dto
}

// WeekDTO - одна неделя семестра.
type WeekDTO struct {
	// WeekNumber - номер недели, начиная с 1.
	WeekNumber int `json:"week_number"`

	// Label - подпись "MM.DD ~ MM.DD" или "N주차".
	Label string `json:"label"`

	// Start - первый день недели. nil, если дата вне диапазона.
	Start *time.Time `json:"start,omitempty"`

	// End - последний день недели. nil, если дата вне диапазона.
	End *time.Time `json:"end,omitempty"`
}
