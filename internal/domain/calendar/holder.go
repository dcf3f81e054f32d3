package calendar

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/campusnote/termcycle/internal/domain/shared"
)

// Source supplies raw calendar rows.
type Source interface {
	Rows(ctx context.Context) ([]Row, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Row, error)

// Rows calls f.
func (f SourceFunc) Rows(ctx context.Context) ([]Row, error) {
	return f(ctx)
}

// Holder owns the current snapshot and replaces it on Reload.
// Readers always see a complete snapshot.
type Holder struct {
	source   Source
	marker   string
	log      Logger
	current  atomic.Pointer[Snapshot]
	loadedAt atomic.Pointer[time.Time]
}

// NewHolder creates a holder with an empty snapshot.
// A nil source keeps the snapshot empty forever.
func NewHolder(source Source, marker string, log Logger) *Holder {
	h := &Holder{source: source, marker: marker, log: log}
	h.current.Store(&Snapshot{})
	return h
}

// Current returns the active snapshot.
func (h *Holder) Current() Snapshot {
	return *h.current.Load()
}

// Lookup reads from the active snapshot.
func (h *Holder) Lookup(key string) (time.Time, bool) {
	return h.Current().Lookup(key)
}

// LoadedAt returns when the snapshot was last replaced.
func (h *Holder) LoadedAt() (time.Time, bool) {
	t := h.loadedAt.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Reload re-reads the source and swaps in the new snapshot.
// On error the previous snapshot stays active.
func (h *Holder) Reload(ctx context.Context) (Snapshot, error) {
	if h.source == nil {
		return h.Current(), nil
	}

	rows, err := h.source.Rows(ctx)
	if err != nil {
		return h.Current(), shared.WrapError("calendar", "Reload", shared.ErrServiceUnavailable, "read calendar source", err)
	}

	snap := Ingest(rows, h.marker, h.log)
	now := time.Now()
	h.current.Store(&snap)
	h.loadedAt.Store(&now)
	return snap, nil
}
