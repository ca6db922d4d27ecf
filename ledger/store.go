/*
store.go - Persistence interfaces for postings and accounts

PURPOSE:
  Defines the boundary between the scheduler core and the database.
  Implementations exist for SQLite (store/sqlite) and in-memory
  (recurrence/store) for tests.

APPEND-ONLY CONTRACT:
  Entries are append-only. There is no Update or Delete on the Store
  interface; the scheduler never mutates a posting after creation.

IDEMPOTENT BATCHES:
  InsertBatch is all-or-nothing EXCEPT for expected fingerprint collisions:
  an entry whose fingerprint already exists is silently skipped and does not
  fail the batch. This is the storage half of the idempotency contract - the
  deterministic fingerprint (fingerprint.go) is the other half.
*/
package ledger

import (
	"context"
	"errors"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrZeroAmount is returned when an entry with a zero amount reaches the
	// storage boundary. Zero-amount postings are always a bug upstream.
	ErrZeroAmount = errors.New("entry amount must not be zero")

	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// =============================================================================
// STORE - Posting persistence (append-only)
// =============================================================================

// Store persists ledger entries.
type Store interface {
	// InsertBatch persists entries atomically and returns how many were
	// actually inserted. Entries whose fingerprint already exists are
	// skipped as no-ops; any other failure rolls back the whole batch.
	InsertBatch(ctx context.Context, entries []Entry) (int, error)

	// ListByOwner returns an owner's entries, newest first. Month filters to
	// a single month bucket when non-empty.
	ListByOwner(ctx context.Context, owner OwnerID, month string) ([]Entry, error)

	// ExistsFingerprint reports whether a fingerprint is already recorded.
	ExistsFingerprint(ctx context.Context, fingerprint string) (bool, error)
}

// =============================================================================
// ACCOUNT STORE - Read side used by the materializer
// =============================================================================

// AccountStore resolves account references. The materializer needs it to
// inherit each leg's currency and to fail cleanly when a rule points at an
// account that no longer exists.
type AccountStore interface {
	// GetAccount returns the account or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount creates or updates an account record.
	SaveAccount(ctx context.Context, account Account) error

	// ListAccounts returns all accounts for an owner.
	ListAccounts(ctx context.Context, owner OwnerID) ([]Account, error)
}
