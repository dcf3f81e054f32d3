package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	base := NewDomainError("term", "Find", ErrNotFound, "term not found")

	assert.True(t, errors.Is(base, ErrNotFound))
	assert.True(t, errors.Is(base, base))
	assert.False(t, errors.Is(base, ErrAlreadyExists))

	wrapped := fmt.Errorf("load: %w", base)
	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, base))
}

func TestDomainError_Error(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("term", "Insert", ErrServiceUnavailable, "insert failed", cause)

	assert.Equal(t, "term.Insert: insert failed: connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("bad: %w", ErrInvalidInput)))
	assert.True(t, IsValidation(ErrValueOutOfRange))
	assert.False(t, IsValidation(ErrNotFound))
}

func TestIsConflict(t *testing.T) {
	running := NewDomainError("scheduler", "Run", ErrConflict, "job is already running")
	assert.True(t, IsConflict(fmt.Errorf("nightly: %w", running)))
	assert.True(t, IsConflict(ErrAlreadyExists))
	assert.False(t, IsConflict(ErrNotFound))
	assert.False(t, IsRetryable(running))
}
