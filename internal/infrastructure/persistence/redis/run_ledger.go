package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN LEDGER
// Last outcome and a short history of every background job.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// ledgerTTL outlives a yearly schedule.
	ledgerTTL = 400 * 24 * time.Hour

	// ledgerHistorySize is the number of runs kept per job.
	ledgerHistorySize = 50
)

// RunRecord is the stored outcome of one job run.
type RunRecord struct {
	Job         string          `json:"job"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	DurationMS  int64           `json:"duration_ms"`
	Success     bool            `json:"success"`
	Manual      bool            `json:"manual,omitempty"`
	Error       string          `json:"error,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
}

// RunLedger records job outcomes in Redis.
type RunLedger struct {
	cache *Cache
}

// NewRunLedger creates a ledger over cache.
func NewRunLedger(cache *Cache) *RunLedger {
	return &RunLedger{cache: cache}
}

// LastKey returns the key of a job's last run.
func LastKey(job string) string {
	return fmt.Sprintf("%sjob:%s:last", KeyPrefix, job)
}

// HistoryKey returns the key of a job's run history.
func HistoryKey(job string) string {
	return fmt.Sprintf("%sjob:%s:history", KeyPrefix, job)
}

// Record stores rec as the job's last run and prepends it to the history.
func (l *RunLedger) Record(ctx context.Context, rec RunRecord) error {
	if rec.Job == "" {
		return errors.New("run ledger: job name is required")
	}
	if err := l.cache.Set(ctx, LastKey(rec.Job), rec, ledgerTTL); err != nil {
		return fmt.Errorf("run ledger: store last run: %w", err)
	}
	if err := l.cache.PushCapped(ctx, HistoryKey(rec.Job), rec, ledgerHistorySize, ledgerTTL); err != nil {
		return fmt.Errorf("run ledger: append history: %w", err)
	}
	return nil
}

// Last returns the job's last recorded run, or ErrCacheMiss.
func (l *RunLedger) Last(ctx context.Context, job string) (*RunRecord, error) {
	var rec RunRecord
	if err := l.cache.Get(ctx, LastKey(job), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns up to limit runs, most recent first.
func (l *RunLedger) History(ctx context.Context, job string, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > ledgerHistorySize {
		limit = ledgerHistorySize
	}
	items, err := l.cache.Range(ctx, HistoryKey(job), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("run ledger: read history: %w", err)
	}

	out := make([]RunRecord, 0, len(items))
	for _, item := range items {
		var rec RunRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// NewRunRecord builds a record from a finished run. details is stored as
// JSON and may be nil.
func NewRunRecord(job string, startedAt, completedAt time.Time, manual bool, runErr error, details any) (RunRecord, error) {
	rec := RunRecord{
		Job:         job,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMS:  completedAt.Sub(startedAt).Milliseconds(),
		Success:     runErr == nil,
		Manual:      manual,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return rec, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		rec.Details = raw
	}
	return rec, nil
}
