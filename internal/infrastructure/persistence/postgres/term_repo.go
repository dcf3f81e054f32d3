package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusnote/termcycle/internal/domain/term"
)

// ══════════════════════════════════════════════════════════════════════════════
// TERM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// TermRepository implements term.Repository on top of a pool or a transaction.
type TermRepository struct {
	q Querier
}

var _ term.Repository = (*TermRepository)(nil)

// NewTermRepository creates a repository bound to q.
func NewTermRepository(q Querier) *TermRepository {
	return &TermRepository{q: q}
}

const termColumns = `id::text, owner_id, name, year, season, start_date, start_source, created_at`

// ListByOwner returns all terms of the owner ordered by year and season rank.
func (r *TermRepository) ListByOwner(ctx context.Context, ownerID string) ([]*term.Term, error) {
	query := `
		SELECT ` + termColumns + `
		FROM terms
		WHERE owner_id = $1
		ORDER BY year,
			CASE season WHEN 'spring' THEN 1 WHEN 'summer' THEN 2 WHEN 'fall' THEN 3 WHEN 'winter' THEN 4 ELSE 0 END
	`

	rows, err := r.q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	defer rows.Close()

	terms := make([]*term.Term, 0, 16)
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate terms: %w", err)
	}
	return terms, nil
}

// GetByID returns one of the owner's terms.
func (r *TermRepository) GetByID(ctx context.Context, ownerID, id string) (*term.Term, error) {
	query := `
		SELECT ` + termColumns + `
		FROM terms
		WHERE owner_id = $1 AND id::text = $2
	`

	t, err := scanTerm(r.q.QueryRow(ctx, query, ownerID, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, term.ErrTermNotFound
		}
		return nil, err
	}
	return t, nil
}

// ExistsByName checks whether the owner has a term with this display name.
func (r *TermRepository) ExistsByName(ctx context.Context, ownerID, name string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM terms WHERE owner_id = $1 AND name = $2)`,
		ownerID, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check term name: %w", err)
	}
	return exists, nil
}

// Insert creates a term. A conflict on either unique key is reported as
// (false, nil) so that the surrounding transaction stays usable.
func (r *TermRepository) Insert(ctx context.Context, t *term.Term) (bool, error) {
	query := `
		INSERT INTO terms (id, owner_id, name, year, season, start_date, start_source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT DO NOTHING
	`

	var start *time.Time
	if t.StartDate != nil {
		d := term.DateOf(*t.StartDate)
		start = &d
	}

	tag, err := r.q.Exec(ctx, query,
		t.ID,
		t.OwnerID,
		t.Name,
		t.Year,
		string(t.Season),
		start,
		string(t.StartSource),
		t.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return false, term.ErrTermAlreadyExists
		}
		return false, fmt.Errorf("failed to insert term: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateStart sets the start date and its source.
func (r *TermRepository) UpdateStart(ctx context.Context, id string, start time.Time, source term.StartSource) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE terms SET start_date = $2, start_source = $3 WHERE id::text = $1`,
		id, term.DateOf(start), string(source),
	)
	if err != nil {
		return fmt.Errorf("failed to update term start: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return term.ErrTermNotFound
	}
	return nil
}

// Delete removes a term.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	// The savepoint keeps the owner's transaction usable when the
	// coursework foreign key refuses the delete.
	var tag pgconn.CommandTag
	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		var err error
		tag, err = tx.Exec(ctx, `DELETE FROM terms WHERE id::text = $1`, id)
		return err
	})
	if IsForeignKeyViolation(err) {
		return term.ErrTermInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete term: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return term.ErrTermNotFound
	}
	return nil
}

func scanTerm(row pgx.Row) (*term.Term, error) {
	var (
		t      term.Term
		season string
		source string
	)
	err := row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&t.Year,
		&season,
		&t.StartDate,
		&source,
		&t.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan term: %w", err)
	}

	// Unknown codes are kept as is; the resolvers treat them as
	// unrecognised seasons.
	t.Season = term.Season(season)
	t.StartSource = term.StartSource(source)
	if t.StartDate != nil {
		d := term.DateOf(*t.StartDate)
		t.StartDate = &d
	}
	return &t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSEWORK CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// CourseworkChecker implements term.CourseworkChecker.
type CourseworkChecker struct {
	q Querier
}

var _ term.CourseworkChecker = (*CourseworkChecker)(nil)

// NewCourseworkChecker creates a checker bound to q.
func NewCourseworkChecker(q Querier) *CourseworkChecker {
	return &CourseworkChecker{q: q}
}

// HasCoursework reports whether any coursework references the term.
func (p *CourseworkChecker) HasCoursework(ctx context.Context, termID string) (bool, error) {
	var exists bool
	err := p.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM coursework WHERE term_id::text = $1)`,
		termID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check coursework: %w", err)
	}
	return exists, nil
}
