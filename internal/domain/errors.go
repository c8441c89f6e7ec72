package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, used as sentinels so callers can classify with errors.Is
// regardless of the wrapping that happened on the way up.
var (
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrNotFound            = errors.New("not found")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrUnresolvedConflicts = errors.New("unresolved conflicts")
	ErrStorage             = errors.New("storage error")
)

// Validationf builds a validation error for malformed input.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflictf builds a uniqueness-violation error.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundf builds an error for a missing entity.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Invariantf builds an error for an operation that would break a structural
// invariant, such as deleting a space's default branch.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// Storagef wraps an underlying store failure. These are the only errors
// subject to caller-level retry policy.
func Storagef(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, fmt.Sprintf(format, args...), err)
}

// UnresolvedConflictsError is returned by a merge attempted with missing or
// mismatched resolutions. It carries the comparison keys still in conflict.
type UnresolvedConflictsError struct {
	Keys []ComparisonKey
}

func (e *UnresolvedConflictsError) Error() string {
	names := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		names[i] = k.String()
	}
	return fmt.Sprintf("unresolved conflicts: %d remaining (%s)", len(e.Keys), strings.Join(names, ", "))
}

func (e *UnresolvedConflictsError) Unwrap() error { return ErrUnresolvedConflicts }
