// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusnote/termcycle/internal/domain/shared"
	"github.com/campusnote/termcycle/internal/domain/term"
	"github.com/campusnote/termcycle/pkg/logger"
	"github.com/campusnote/termcycle/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENSURE WINDOW COMMAND
// Creates the four terms of every year in a range for one owner.
// Existing terms are left alone, so the command can be repeated safely.
// ══════════════════════════════════════════════════════════════════════════════

// EnsureWindowCommand contains the data needed to provision a year range.
type EnsureWindowCommand struct {
	// OwnerID is the account the terms belong to.
	OwnerID string

	// FromYear is the first year of the range (inclusive).
	FromYear int

	// ToYear is the last year of the range (inclusive).
	ToYear int
}

// Validate validates the command.
func (c EnsureWindowCommand) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id is required", shared.ErrInvalidInput)
	}
	if c.FromYear > c.ToYear {
		return fmt.Errorf("%w: from_year %d is after to_year %d", shared.ErrInvalidInput, c.FromYear, c.ToYear)
	}
	if c.FromYear < 1 || c.ToYear > 9999 {
		return fmt.Errorf("%w: years must be within 1..9999", shared.ErrInvalidInput)
	}
	return nil
}

// EnsureWindowResult contains the outcome of provisioning.
type EnsureWindowResult struct {
	// OwnerID is the account that was provisioned.
	OwnerID string

	// Created is the number of terms inserted by this call.
	Created int

	// Existing is the number of terms that were already present.
	Existing int

	// CreatedTerms lists the inserted terms in creation order.
	CreatedTerms []*term.Term
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProvisionTermsHandler creates and maintains an owner's terms.
type ProvisionTermsHandler struct {
	uow      term.UnitOfWork
	resolver *term.StartResolver
	clock    timeutil.Clock
	newID    func() string
	log      *logger.Logger

	firstYear  int
	yearsAhead int
}

// ProvisionTermsHandlerConfig contains configuration for the handler.
type ProvisionTermsHandlerConfig struct {
	// FirstYear is the earliest year provisioned at registration.
	FirstYear int

	// YearsAhead is how many years past the current one are provisioned.
	YearsAhead int

	// Clock supplies "now" for registration. Default: Seoul wall clock.
	Clock timeutil.Clock

	// NewID generates term IDs. Default: uuid.NewString.
	NewID func() string
}

// DefaultProvisionTermsHandlerConfig returns default configuration.
func DefaultProvisionTermsHandlerConfig() ProvisionTermsHandlerConfig {
	return ProvisionTermsHandlerConfig{
		FirstYear:  2020,
		YearsAhead: 1,
		Clock:      timeutil.SystemClock{Location: timeutil.SeoulTZ},
		NewID:      uuid.NewString,
	}
}

// NewProvisionTermsHandler creates a new ProvisionTermsHandler.
func NewProvisionTermsHandler(
	uow term.UnitOfWork,
	resolver *term.StartResolver,
	config ProvisionTermsHandlerConfig,
	log *logger.Logger,
) *ProvisionTermsHandler {
	defaults := DefaultProvisionTermsHandlerConfig()
	if config.FirstYear == 0 {
		config.FirstYear = defaults.FirstYear
	}
	if config.YearsAhead < 0 {
		config.YearsAhead = defaults.YearsAhead
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if resolver == nil {
		resolver = term.NewStartResolver(nil)
	}

	return &ProvisionTermsHandler{
		uow:        uow,
		resolver:   resolver,
		clock:      config.Clock,
		newID:      config.NewID,
		log:        logger.OrNop(log).With("component", "provision_terms"),
		firstYear:  config.FirstYear,
		yearsAhead: config.YearsAhead,
	}
}

// Handle executes ensure_window for one owner in a single unit of work.
// An unexpected store failure rolls the whole range back.
func (h *ProvisionTermsHandler) Handle(ctx context.Context, cmd EnsureWindowCommand) (*EnsureWindowResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ensure_window: validation failed: %w", err)
	}

	var result *EnsureWindowResult
	err := h.uow.WithinOwner(ctx, cmd.OwnerID, func(ctx context.Context, stores term.TxStores) error {
		var err error
		result, err = h.EnsureWindow(ctx, stores.Terms, cmd.OwnerID, cmd.FromYear, cmd.ToYear)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure_window: owner %s: %w", cmd.OwnerID, err)
	}

	h.log.Info("term window ensured",
		logger.KeyOwnerID, cmd.OwnerID,
		"from_year", cmd.FromYear,
		"to_year", cmd.ToYear,
		"created", result.Created,
		"existing", result.Existing,
	)
	return result, nil
}

// EnsureWindow provisions [fromYear, toYear] through repo, which must belong
// to a unit of work the caller already holds.
func (h *ProvisionTermsHandler) EnsureWindow(ctx context.Context, repo term.Repository, ownerID string, fromYear, toYear int) (*EnsureWindowResult, error) {
	existing, err := repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		names[t.Name] = struct{}{}
	}

	result := &EnsureWindowResult{OwnerID: ownerID}
	for year := fromYear; year <= toYear; year++ {
		for _, season := range term.Seasons() {
			if _, ok := names[term.DisplayName(year, season)]; ok {
				result.Existing++
				continue
			}

			t, err := h.newTerm(ownerID, year, season)
			if err != nil {
				return nil, err
			}

			inserted, err := repo.Insert(ctx, t)
			switch {
			case errors.Is(err, term.ErrTermAlreadyExists):
				inserted = false
			case err != nil:
				return nil, fmt.Errorf("insert %s: %w", t.Name, err)
			}

			names[t.Name] = struct{}{}
			if !inserted {
				result.Existing++
				continue
			}
			result.Created++
			result.CreatedTerms = append(result.CreatedTerms, t)
		}
	}
	return result, nil
}

func (h *ProvisionTermsHandler) newTerm(ownerID string, year int, season term.Season) (*term.Term, error) {
	start, source := h.resolver.ResolveWithSource(year, season)
	t, err := term.NewTerm(term.NewTermParams{
		ID:          h.newID(),
		OwnerID:     ownerID,
		Year:        year,
		Season:      season,
		StartDate:   start,
		StartSource: source,
		CreatedAt:   h.clock.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("build term %d %s: %w", year, season, err)
	}
	return t, nil
}

// RegistrationWindow returns the year range provisioned for a new account.
func (h *ProvisionTermsHandler) RegistrationWindow(now time.Time) (int, int) {
	hi := now.Year() + h.yearsAhead
	lo := h.firstYear
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// ProvisionForNewOwner provisions the registration window for an account.
func (h *ProvisionTermsHandler) ProvisionForNewOwner(ctx context.Context, ownerID string) (*EnsureWindowResult, error) {
	lo, hi := h.RegistrationWindow(h.clock.Now())
	return h.Handle(ctx, EnsureWindowCommand{OwnerID: ownerID, FromYear: lo, ToYear: hi})
}
