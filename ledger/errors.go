/*
errors.go - Centralized error types for the ledger core

ERROR CATEGORIES:
  1. Field errors - A candidate row fails semantic validation
  2. Persistence errors - The backing store could not be written
  3. Lookup errors - Unknown section

NOT ERRORS:
  - Malformed stored rows are skipped by the store during Load.
  - Update/Delete of a missing id report false, not an error.

USAGE:
  if errors.Is(err, ledger.ErrPersistence) {
      // in-memory state was rolled back (unless rollback is disabled)
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date is not a valid YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("invalid date format")

	// ErrInvalidAmount is returned when an amount is not a number.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNonPositiveAmount is returned when an amount is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrEmptyCategory is returned when a category is blank.
	ErrEmptyCategory = errors.New("category cannot be empty")

	// ErrEmptyDescription is returned when a description is blank.
	ErrEmptyDescription = errors.New("item/description cannot be empty")

	// ErrPersistence is returned when the backing store cannot be written.
	ErrPersistence = errors.New("persistence failure")

	// ErrUnknownSection is returned for a section key outside the fixed set.
	ErrUnknownSection = errors.New("unknown section")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports which field of a candidate failed and why.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	switch e.Err {
	case ErrInvalidDate, ErrInvalidAmount:
		return fmt.Sprintf("%v - %q", e.Err, e.Value)
	default:
		return e.Err.Error()
	}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a store failure with the operation that triggered it.
type PersistenceError struct {
	Op      string
	Section Section
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: save failed: %v", e.Section, e.Op, e.Err)
}

// Is lets errors.Is match both ErrPersistence and the underlying cause.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidationError returns true if the error is due to invalid record input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrEmptyCategory) ||
		errors.Is(err, ErrEmptyDescription)
}

// IsClientError returns true if the error is caused by caller input.
func IsClientError(err error) bool {
	return IsValidationError(err) || errors.Is(err, ErrUnknownSection)
}
