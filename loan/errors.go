/*
errors.go - Centralized error types for the loan ledger

PURPOSE:
  All error types in one place. Every failure of a ledger operation is
  returned as a value; nothing in this package panics on user input or on
  stored data.

ERROR CATEGORIES:
  1. Lookup errors - Client not found, loan index out of range
  2. Validation errors - Bad amounts, names, terms, malformed dates
  3. Data-integrity errors - A stored loan that breaks the invariants
     (term_weeks == 0). These point at a corrupt record, not a bad selection,
     and are reported separately from user-input errors.

USAGE:
  if loan.IsNotFound(err) {
      // show "client not found"
  }
  if loan.IsDataIntegrity(err) {
      // log and flag the record
  }

SEE ALSO:
  - api/handlers.go: Maps these categories onto HTTP status codes
*/
package loan

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrClientNotFound is returned when a name lookup matches no client.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidIndex is returned when a loan index is outside the client's loans.
	ErrInvalidIndex = errors.New("invalid loan index")

	// ErrDivideByZero is returned when a loan has term_weeks <= 0.
	ErrDivideByZero = errors.New("division by zero: loan term is zero weeks")

	// ErrMalformedDate is returned when a date is not YYYY-MM-DD.
	ErrMalformedDate = errors.New("malformed date")

	// ErrDuplicateClient is returned when registering a name that already exists.
	ErrDuplicateClient = errors.New("client already exists")

	// ErrInvalidName is returned for an empty client name.
	ErrInvalidName = errors.New("invalid client name")

	// ErrInvalidPrincipal is returned for a principal <= 0.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrInvalidTerm is returned for term_weeks <= 0 at loan creation.
	ErrInvalidTerm = errors.New("invalid term")

	// ErrInvalidAmount is returned for a negative payment amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPaymentNotFound is returned when reversing an unknown payment.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAlreadyReversed is returned when a payment has already been offset,
	// or when the target is itself a reversal.
	ErrAlreadyReversed = errors.New("payment already reversed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the client that could not be found.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("client not found: %q", e.Name) }
func (e *NotFoundError) Unwrap() error { return ErrClientNotFound }

// InvalidIndexError reports an out-of-range loan selection.
type InvalidIndexError struct {
	Index int
	Count int
}

func (e *InvalidIndexError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("invalid loan index %d: client has no loans", e.Index)
	}
	return fmt.Sprintf("invalid loan index %d: choose between 0 and %d", e.Index, e.Count-1)
}

func (e *InvalidIndexError) Unwrap() error { return ErrInvalidIndex }

// CorruptLoanError is a data-integrity fault on a stored loan.
type CorruptLoanError struct {
	LoanID    LoanID
	TermWeeks int
}

func (e *CorruptLoanError) Error() string {
	return fmt.Sprintf("corrupt loan %s: term_weeks=%d", e.LoanID, e.TermWeeks)
}

func (e *CorruptLoanError) Unwrap() error { return ErrDivideByZero }

// MalformedDateError carries the text that failed to parse.
type MalformedDateError struct {
	Value string
	Err   error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q: want YYYY-MM-DD", e.Value)
}

func (e *MalformedDateError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedDate}
	}
	return []error{ErrMalformedDate, e.Err}
}

// DuplicateClientError names the existing client that blocks a registration.
type DuplicateClientError struct {
	Name     string
	Existing ClientID
}

func (e *DuplicateClientError) Error() string {
	return fmt.Sprintf("client %q already exists (id %s)", e.Name, e.Existing)
}

func (e *DuplicateClientError) Unwrap() error { return ErrDuplicateClient }

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing client or payment.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound) || errors.Is(err, ErrPaymentNotFound)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrMalformedDate) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidPrincipal) ||
		errors.Is(err, ErrInvalidTerm) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAlreadyReversed)
}

// IsConflict returns true if the error is a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateClient)
}

// IsDataIntegrity returns true if the error points at a corrupt stored record.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDivideByZero)
}
