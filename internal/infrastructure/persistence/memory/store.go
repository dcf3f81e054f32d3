// Package memory implements the term collaborator interfaces in process.
// Units of work run one at a time and are undone on error or panic, the
// way a database transaction would be.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campusnote/termcycle/internal/domain/term"
)

// Op names passed to FailOn.
const (
	OpList          = "list"
	OpGet           = "get"
	OpExists        = "exists"
	OpInsert        = "insert"
	OpUpdateStart   = "update_start"
	OpDelete        = "delete"
	OpHasCoursework = "has_coursework"
	OpListOwners    = "list_owners"
)

// Store keeps owners, terms and coursework counts in memory.
type Store struct {
	// FailOn, when set, is consulted before every operation. A non-nil
	// return value is returned as the operation's error.
	FailOn func(op, ownerID string) error

	txMu sync.Mutex
	mu   sync.Mutex

	owners     []string
	terms      map[string]*term.Term
	coursework map[string]int
}

var (
	_ term.Repository        = (*Store)(nil)
	_ term.CourseworkChecker = (*Store)(nil)
	_ term.OwnerSource       = (*Store)(nil)
	_ term.UnitOfWork        = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		terms:      make(map[string]*term.Term),
		coursework: make(map[string]int),
	}
}

// AddOwner registers an owner. Adding the same owner twice is a no-op.
func (s *Store) AddOwner(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o == ownerID {
			return
		}
	}
	s.owners = append(s.owners, ownerID)
}

// AddCoursework records n coursework items for a term.
func (s *Store) AddCoursework(termID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coursework[termID] += n
}

// Put stores a term as is, bypassing the uniqueness checks.
func (s *Store) Put(t *term.Term) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms[t.ID] = cloneTerm(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// WithinOwner runs fn against the store and restores the previous state
// if fn returns an error or panics.
func (s *Store) WithinOwner(ctx context.Context, ownerID string, fn func(ctx context.Context, stores term.TxStores) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	saved := s.save()
	defer func() {
		if r := recover(); r != nil {
			s.restore(saved)
			panic(r)
		}
		if err != nil {
			s.restore(saved)
		}
	}()

	return fn(ctx, term.TxStores{Terms: s, Coursework: s})
}

type state struct {
	terms      map[string]*term.Term
	coursework map[string]int
}

func (s *Store) save() state {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := state{
		terms:      make(map[string]*term.Term, len(s.terms)),
		coursework: make(map[string]int, len(s.coursework)),
	}
	for id, t := range s.terms {
		st.terms[id] = cloneTerm(t)
	}
	for id, n := range s.coursework {
		st.coursework[id] = n
	}
	return st
}

func (s *Store) restore(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terms = st.terms
	s.coursework = st.coursework
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) fail(op, ownerID string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op, ownerID)
}

// ListByOwner returns the owner's terms ordered by year and season rank.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*term.Term, error) {
	if err := s.fail(OpList, ownerID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*term.Term, 0)
	for _, t := range s.terms {
		if t.OwnerID == ownerID {
			out = append(out, cloneTerm(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Season.Rank() < out[j].Season.Rank()
	})
	return out, nil
}

// GetByID returns one of the owner's terms.
func (s *Store) GetByID(ctx context.Context, ownerID, id string) (*term.Term, error) {
	if err := s.fail(OpGet, ownerID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.terms[id]
	if !ok || t.OwnerID != ownerID {
		return nil, term.ErrTermNotFound
	}
	return cloneTerm(t), nil
}

// ExistsByName reports whether the owner has a term named name.
func (s *Store) ExistsByName(ctx context.Context, ownerID, name string) (bool, error) {
	if err := s.fail(OpExists, ownerID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.terms {
		if t.OwnerID == ownerID && t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Insert adds t unless the owner already has a term with the same name
// or the same year and season.
func (s *Store) Insert(ctx context.Context, t *term.Term) (bool, error) {
	if err := s.fail(OpInsert, t.OwnerID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.terms {
		if existing.OwnerID != t.OwnerID {
			continue
		}
		if existing.Name == t.Name || (existing.Year == t.Year && existing.Season == t.Season) {
			return false, nil
		}
	}
	s.terms[t.ID] = cloneTerm(t)
	return true, nil
}

// UpdateStart sets the start date of a term.
func (s *Store) UpdateStart(ctx context.Context, id string, start time.Time, source term.StartSource) error {
	s.mu.Lock()
	t, ok := s.terms[id]
	s.mu.Unlock()
	if !ok {
		return term.ErrTermNotFound
	}
	if err := s.fail(OpUpdateStart, t.OwnerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := term.DateOf(start)
	t.StartDate = &d
	t.StartSource = source
	return nil
}

// Delete removes a term. A term with coursework is refused with
// term.ErrTermInUse, like the foreign key in postgres.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	t, ok := s.terms[id]
	s.mu.Unlock()
	if !ok {
		return term.ErrTermNotFound
	}
	if err := s.fail(OpDelete, t.OwnerID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coursework[id] > 0 {
		return term.ErrTermInUse
	}
	delete(s.terms, id)
	return nil
}

// HasCoursework reports whether the term has any coursework.
func (s *Store) HasCoursework(ctx context.Context, termID string) (bool, error) {
	s.mu.Lock()
	t, ok := s.terms[termID]
	s.mu.Unlock()
	owner := ""
	if ok {
		owner = t.OwnerID
	}
	if err := s.fail(OpHasCoursework, owner); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coursework[termID] > 0, nil
}

// ListOwnerIDs returns owners in registration order.
func (s *Store) ListOwnerIDs(ctx context.Context) ([]string, error) {
	if err := s.fail(OpListOwners, ""); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.owners...), nil
}

func cloneTerm(t *term.Term) *term.Term {
	c := *t
	if t.StartDate != nil {
		d := *t.StartDate
		c.StartDate = &d
	}
	return &c
}
