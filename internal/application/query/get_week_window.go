package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campusnote/termcycle/internal/domain/term"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WEEK WINDOW QUERY
// Недели семестра: диапазон дат недели N, номер недели для даты и
// разметка недель для страницы недельных заметок.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultOutlineWeeks - количество недель в разметке по умолчанию.
const DefaultOutlineWeeks = 16

// maxOutlineWeeks ограничивает размер одной разметки.
const maxOutlineWeeks = 104

// TermRef указывает семестр владельца.
type TermRef struct {
	OwnerID string
	TermID  string
}

// WeekRangeDTO - диапазон дат одной недели.
type WeekRangeDTO struct {
	Term  TermDTO `json:"term"`
	Week  WeekDTO `json:"week"`
	Start string  `json:"start"`
	End   string  `json:"end"`
}

// OutlineDTO - недели семестра подряд, начиная с первой.
type OutlineDTO struct {
	Term  TermDTO   `json:"term"`
	Weeks []WeekDTO `json:"weeks"`
}

// GetWeekWindowHandler обрабатывает запросы по неделям семестра.
type GetWeekWindowHandler struct {
	reader       TermReader
	outlineWeeks int
}

// NewGetWeekWindowHandler создаёт новый обработчик.
// outlineWeeks <= 0 заменяется на DefaultOutlineWeeks.
func NewGetWeekWindowHandler(reader TermReader, outlineWeeks int) *GetWeekWindowHandler {
	if outlineWeeks <= 0 {
		outlineWeeks = DefaultOutlineWeeks
	}
	return &GetWeekWindowHandler{reader: reader, outlineWeeks: outlineWeeks}
}

func (h *GetWeekWindowHandler) load(ctx context.Context, ref TermRef) (*term.Term, error) {
	if ref.OwnerID == "" || ref.TermID == "" {
		return nil, fmt.Errorf("%w: owner_id and term_id are required", term.ErrInvalidTerm)
	}
	t, err := h.reader.GetByID(ctx, ref.OwnerID, ref.TermID)
	if err != nil {
		return nil, fmt.Errorf("load term %s: %w", ref.TermID, err)
	}
	return t, nil
}

// WeekRange выполняет week_range(term, n).
// Возвращает term.ErrDateOverflow, если дата выходит за допустимый диапазон.
func (h *GetWeekWindowHandler) WeekRange(ctx context.Context, ref TermRef, week int) (*WeekRangeDTO, error) {
	t, err := h.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	start, end, err := term.CheckedWeekRange(t.EffectiveStart(), week)
	if err != nil {
		return nil, fmt.Errorf("week %d of %s: %w", week, t.Name, err)
	}
	return &WeekRangeDTO{
		Term:  NewTermDTO(t),
		Week:  weekDTO(t.EffectiveStart(), week),
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}, nil
}

// WeekOf выполняет week_of(term, date). 0 - дата раньше начала семестра.
func (h *GetWeekWindowHandler) WeekOf(ctx context.Context, ref TermRef, date time.Time) (int, error) {
	t, err := h.load(ctx, ref)
	if err != nil {
		return 0, err
	}
	return term.WeekOf(t.EffectiveStart(), date), nil
}

// Outline возвращает weeks недель семестра. weeks <= 0 - значение по умолчанию.
// Недели вне допустимого диапазона дат получают подпись "N주차" без дат.
func (h *GetWeekWindowHandler) Outline(ctx context.Context, ref TermRef, weeks int) (*OutlineDTO, error) {
	if weeks <= 0 {
		weeks = h.outlineWeeks
	}
	if weeks > maxOutlineWeeks {
		weeks = maxOutlineWeeks
	}

	t, err := h.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	start := t.EffectiveStart()
	out := &OutlineDTO{Term: NewTermDTO(t), Weeks: make([]WeekDTO, 0, weeks)}
	for n := 1; n <= weeks; n++ {
		out.Weeks = append(out.Weeks, weekDTO(start, n))
	}
	return out, nil
}

func weekDTO(termStart time.Time, n int) WeekDTO {
	dto := WeekDTO{WeekNumber: n, Label: term.WeekLabel(termStart, n)}
	if ws, we, ok := term.SafeWeekRange(termStart, n); ok {
		dto.Start, dto.End = &ws, &we
	}
	return dto
}
