/*
errors.go - Centralized error types for the scheduler core

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Validation errors - malformed recurrence parameters, surfaced at
     create/update time, never during batch processing
  2. Not-found errors - operations on a missing definition or account
  3. Materialization errors - a due rule could not be turned into postings;
     caught per-definition inside a batch, never aborts the batch
  4. Storage errors - commit failures; propagate and abort the whole batch

  A fingerprint collision at insert time is NOT an error anywhere in this
  taxonomy: it is the expected outcome of a retried run and is absorbed as
  a no-op by the ledger store.

SEE ALSO:
  - processor.go: Per-definition isolation vs. batch-level propagation
  - ledger/store.go: Ledger-side sentinel errors
*/
package recurrence

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDefinitionNotFound is returned when a referenced recurring
	// definition does not exist.
	ErrDefinitionNotFound = errors.New("recurring definition not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a malformed or incomplete recurrence parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MaterializationError reports that a due definition could not be turned
// into postings (e.g., its account no longer exists). The processor records
// it against the definition and moves on.
type MaterializationError struct {
	DefinitionID DefinitionID
	Err          error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize definition %s: %v", e.DefinitionID, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}
