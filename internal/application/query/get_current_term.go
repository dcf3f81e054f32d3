package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CURRENT TERM QUERY
// Определяет активный семестр владельца на заданную дату.
// Семестры перечитываются при каждом вызове, кэша нет.
// ══════════════════════════════════════════════════════════════════════════════

// GetCurrentTermQuery содержит параметры запроса текущего семестра.
type GetCurrentTermQuery struct {
	// OwnerID - владелец.
	OwnerID string

	// Today - момент, на который ищется семестр. Нулевое значение - сейчас.
	// Дата берётся в часовом поясе кампуса.
	Today time.Time
}

// Validate проверяет корректность параметров запроса.
func (q GetCurrentTermQuery) Validate() error {
	if q.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", shared.ErrInvalidInput)
	}
	return nil
}

// CurrentTermDTO - результат запроса текущего семестра.
type CurrentTermDTO struct {
	// Found - найден ли хоть один семестр.
	Found bool `json:"found"`

	// Term - текущий семестр. nil, если Found == false.
	Term *TermDTO `json:"term,omitempty"`

	// InWindow - дата попадает в окно семестра (а не выбрана по порядку).
	InWindow bool `json:"in_window"`

	// Week - номер недели семестра на эту дату (0 - до начала).
	Week int `json:"week"`

	// Date - дата, на которую выполнен запрос (YYYY-MM-DD).
	Date string `json:"date"`
}

// GetCurrentTermHandler обрабатывает запрос текущего семестра.
type GetCurrentTermHandler struct {
	reader   TermReader
	resolver *term.CurrentResolver
	clock    timeutil.Clock
	location *time.Location
}

// NewGetCurrentTermHandler создаёт новый обработчик.
func NewGetCurrentTermHandler(reader TermReader, resolver *term.CurrentResolver, clock timeutil.Clock, location *time.Location) *GetCurrentTermHandler {
	if resolver == nil {
		resolver = term.NewCurrentResolver(term.DefaultContainmentWeeks)
	}
	if location == nil {
		location = timeutil.SeoulTZ
	}
	if clock == nil {
		clock = timeutil.SystemClock{Location: location}
	}
	return &GetCurrentTermHandler{
		reader:   reader,
		resolver: resolver,
		clock:    clock,
		location: location,
	}
}

// Handle выполняет resolve_current(owner, today).
func (h *GetCurrentTermHandler) Handle(ctx context.Context, q GetCurrentTermQuery) (*CurrentTermDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_current_term: %w", err)
	}

	instant := q.Today
	if instant.IsZero() {
		instant = h.clock.Now()
	}
	today := timeutil.Today(instant, h.location)

	terms, err := h.reader.ListByOwner(ctx, q.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("get_current_term: list terms: %w", err)
	}

	result := &CurrentTermDTO{Date: timeutil.FormatDateStr(today)}
	current, ok := h.resolver.Resolve(today, terms)
	if !ok {
		return result, nil
	}

	dto := NewTermDTO(current)
	result.Found = true
	result.Term = &dto
	result.InWindow = h.resolver.Contains(current, today)
	result.Week = term.WeekOf(current.EffectiveStart(), today)
	return result, nil
}
