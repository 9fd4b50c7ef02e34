/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place. The engine package wraps these with
  batch context; callers branch with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Row addressing - Handles outside the current table
  2. Invoice resolution - No row matched under any strategy
  3. Settlement - Paid transition with no usable amount
  4. Store - Persistence failures (the only fatal category)
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
	// ErrInvoiceNotFound is returned when no invoice matches a reference
	// under any matching strategy. Reported, never thrown through a batch.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrNoSettlementAmount is returned when an invoice transitions to paid
	// with neither settlement details nor a known invoice amount.
	ErrNoSettlementAmount = errors.New("no settlement amount available")

	// ErrRowOutOfRange is returned for a handle outside the current table.
	ErrRowOutOfRange = errors.New("row handle out of range")

	// ErrStoreUnavailable is returned when the persisted document cannot be
	// opened or read. Fatal for the whole batch.
	ErrStoreUnavailable = errors.New("ledger store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RowRangeError reports which handle missed which table.
type RowRangeError struct {
	Handle RowHandle
	Rows   int
	Table  string
}

func (e *RowRangeError) Error() string {
	return fmt.Sprintf("row %d out of range for %s (%d rows)", e.Handle, e.Table, e.Rows)
}

func (e *RowRangeError) Unwrap() error { return ErrRowOutOfRange }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the content of a
// change request rather than the system's own state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrNoSettlementAmount) ||
		errors.Is(err, ErrRowOutOfRange)
}

// IsFatal returns true if the error must abort the whole batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
