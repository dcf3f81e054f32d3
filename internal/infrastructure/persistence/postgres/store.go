package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campusnote/termcycle/internal/domain/term"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// Entry point of the term persistence layer. Reads outside a unit of work
// go straight to the pool; writes go through WithinOwner.
// ══════════════════════════════════════════════════════════════════════════════

// Store implements term.UnitOfWork and term.OwnerSource, and reads terms
// outside a transaction for the query side.
type Store struct {
	conn  *Connection
	terms *TermRepository
}

var (
	_ term.UnitOfWork  = (*Store)(nil)
	_ term.OwnerSource = (*Store)(nil)
)

// NewStore creates a store over conn.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, terms: NewTermRepository(conn.Pool())}
}

// WithinOwner runs fn in one read-committed transaction holding an
// advisory lock on the owner id, so two job instances never work on the
// same owner at once. The unique constraints still guard inserts.
func (s *Store) WithinOwner(ctx context.Context, ownerID string, fn func(ctx context.Context, stores term.TxStores) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('termcycle:' || $1))`, ownerID); err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}
		return fn(ctx, term.TxStores{
			Terms:      NewTermRepository(tx),
			Coursework: NewCourseworkChecker(tx),
		})
	})
}

// ListOwnerIDs returns every owner known to the portal.
func (s *Store) ListOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Pool().Query(ctx, `SELECT id FROM owners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan owners: %w", err)
	}
	return ids, nil
}

// ListByOwner reads the owner's terms outside a transaction.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*term.Term, error) {
	return s.terms.ListByOwner(ctx, ownerID)
}

// GetByID reads one term outside a transaction.
func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*term.Term, error) {
	return s.terms.GetByID(ctx, ownerID, id)
}

// EnsureOwner registers an owner id if it is not known yet.
// The portal normally owns this table; termctl and tests use it.
func (s *Store) EnsureOwner(ctx context.Context, ownerID string) error {
	_, err := s.conn.Pool().Exec(ctx, `INSERT INTO owners (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to ensure owner: %w", err)
	}
	return nil
}

// AddCoursework records one coursework item for a term. Used by tests and
// local seeding; the portal writes coursework in production.
func (s *Store) AddCoursework(ctx context.Context, id, termID, title string) error {
	_, err := s.conn.Pool().Exec(ctx,
		`INSERT INTO coursework (id, term_id, title) VALUES ($1, $2, $3)`,
		id, termID, title,
	)
	if err != nil {
		return fmt.Errorf("failed to add coursework: %w", err)
	}
	return nil
}
