package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKFILL START DATES
// Re-stamps terms whose start date is missing or came from the static
// table once the calendar knows better. Calendar dates are never replaced.
// ══════════════════════════════════════════════════════════════════════════════

// BackfillResult summarises one owner's backfill.
type BackfillResult struct {
	OwnerID   string
	Restamped int
	Unchanged int
}

// Backfill re-stamps one owner's unresolved start dates in one unit of work.
func (h *ProvisionTermsHandler) Backfill(ctx context.Context, ownerID string) (*BackfillResult, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("backfill: %w: owner_id is required", shared.ErrInvalidInput)
	}

	var result *BackfillResult
	err := h.uow.WithinOwner(ctx, ownerID, func(ctx context.Context, stores term.TxStores) error {
		var err error
		result, err = h.BackfillWith(ctx, stores.Terms, ownerID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("backfill: owner %s: %w", ownerID, err)
	}

	if result.Restamped > 0 {
		h.log.Info("start dates backfilled", logger.KeyOwnerID, ownerID, "restamped", result.Restamped)
	}
	return result, nil
}

// BackfillWith re-stamps through repo inside a unit of work the caller holds.
func (h *ProvisionTermsHandler) BackfillWith(ctx context.Context, repo term.Repository, ownerID string) (*BackfillResult, error) {
	terms, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}

	result := &BackfillResult{OwnerID: ownerID}
	for _, t := range terms {
		if !t.NeedsBackfill() {
			result.Unchanged++
			continue
		}

		start, source := h.resolver.ResolveWithSource(t.Year, t.Season)
		if source != term.StartSourceCalendar && t.HasStart() {
			// Only a calendar date may replace a date that is already set.
			result.Unchanged++
			continue
		}
		if !t.Restamp(start, source) {
			result.Unchanged++
			continue
		}

		if err := repo.UpdateStart(ctx, t.ID, *t.StartDate, t.StartSource); err != nil {
			return nil, fmt.Errorf("update start of %s: %w", t.Name, err)
		}
		result.Restamped++
	}
	return result, nil
}
