/*
Package ledger defines the posting model: immutable, append-only records of
money movement.

PURPOSE:
  The ledger is the source of truth for everything the scheduler produces.
  Every materialized occurrence becomes one or more Entry records. Entries
  are never updated or deleted; corrections happen in out-of-band flows.

KEY CONCEPTS IN THIS FILE (entry.go):
  - Entry: A dated, signed posting in minor currency units
  - TransferType: Which leg of a transfer an entry represents
  - EntryID/AccountID/OwnerID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Entries are append-only at the storage boundary
  2. Integer money: Amounts are int64 minor units, no floating point
  3. Idempotency: The fingerprint is the sole duplicate guard - a retried
     run regenerates identical fingerprints and the unique index rejects
     the re-insert as a no-op

SEE ALSO:
  - fingerprint.go: Deterministic fingerprint derivation
  - store.go: Persistence interface
*/
package ledger

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type AccountID string
type OwnerID string

// =============================================================================
// TRANSFER TYPE - Which leg of a transfer a posting represents
// =============================================================================

type TransferType string

const (
	TransferNone     TransferType = "none"     // Plain income/expense posting
	TransferOutgoing TransferType = "outgoing" // Money leaving the source account
	TransferIncoming TransferType = "incoming" // Money arriving at the destination
	TransferFee      TransferType = "fee"      // Fixed fee charged to the source
)

// =============================================================================
// ENTRY - Immutable posting
// =============================================================================

// Entry is a single money movement on a given date.
//
// INVARIANTS:
//   - Amount is never zero
//   - Fingerprint is globally unique across all entries for an owner's books
//   - Legs of one transfer share a TransferID minted at materialization time
type Entry struct {
	ID          EntryID
	OwnerID     OwnerID
	AccountID   AccountID
	Date        Date
	Amount      int64 // Signed, in minor currency units (cents, yen, ...)
	Currency    string
	Category    string
	Source      string // Human label, the recurring rule's description
	IsIncome    bool
	IsTransfer  bool
	TransferID  string // Groups co-created legs; empty for simple postings
	Transfer    TransferType
	Month       string // Month bucket, "2006-01"
	Fingerprint string
}

// =============================================================================
// ACCOUNT - Owning account for a posting (collaborator data)
// =============================================================================

// Account carries the currency each posting leg inherits. The scheduler only
// reads accounts; account management lives in the API layer.
type Account struct {
	ID       AccountID
	OwnerID  OwnerID
	Name     string
	Currency string
}
