// Package shared holds the error kinds the domain packages classify their
// failures with. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Domain errors carry one of these so callers can branch with
// errors.Is without knowing the concrete sentinel.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("state conflict")

	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	ErrServiceUnavailable = errors.New("service unavailable")
)

var validationKinds = []error{ErrInvalidInput, ErrValueOutOfRange, ErrInvalidFormat}

// DomainError is a classified failure of a domain operation, e.g.
// term.Find or calendar.Ingest.
type DomainError struct {
	Domain  string
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Domain + "." + e.Op + ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause when there is one, otherwise the kind.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches the kind even when a cause is attached.
func (e *DomainError) Is(target error) bool {
	return e.Kind != nil && errors.Is(e.Kind, target)
}

// NewDomainError creates a sentinel-style domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError classifies err under kind.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool { return isAny(err, validationKinds) }

// IsConflict reports an operation refused because of the current state of
// the entity, e.g. a job that is already running.
func IsConflict(err error) bool { return isAny(err, []error{ErrAlreadyExists, ErrConflict}) }

// IsRetryable reports a transient failure worth another attempt.
func IsRetryable(err error) bool { return errors.Is(err, ErrServiceUnavailable) }

func isAny(err error, kinds []error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
