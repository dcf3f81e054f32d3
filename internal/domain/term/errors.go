package term

import "github.com/campusnote/termcycle/internal/domain/shared"

// Ошибки домена семестров.
var (
	ErrTermNotFound      = shared.NewDomainError("term", "Find", shared.ErrNotFound, "term not found")
	ErrTermAlreadyExists = shared.NewDomainError("term", "Insert", shared.ErrAlreadyExists, "term already exists for owner")
	ErrTermInUse         = shared.NewDomainError("term", "Delete", shared.ErrConflict, "term has coursework")
	ErrInvalidTerm       = shared.NewDomainError("term", "Validate", shared.ErrInvalidInput, "invalid term")
	ErrUnknownSeason     = shared.NewDomainError("term", "ParseSeason", shared.ErrInvalidFormat, "unknown season")
	ErrDateOverflow      = shared.NewDomainError("term", "WeekRange", shared.ErrValueOutOfRange, "date arithmetic out of range")
)
