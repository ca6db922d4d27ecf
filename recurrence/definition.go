package recurrence

import (
	"context"
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// DEFINITION - A declarative recurring obligation
// =============================================================================

type DefinitionID string

// Definition is a recurrence rule owned by exactly one account-holder.
//
// INVARIANTS:
//   - NextRunDate >= StartDate, always
//   - NextRunDate is set at create time and only the processor advances it
//     (and LastRunDate) during normal operation
//   - Deactivation is soft: IsActive flips to false, nothing is deleted
type Definition struct {
	ID      DefinitionID
	OwnerID ledger.OwnerID

	// Obligation
	Description        string
	Amount             int64 // Unsigned, minor currency units
	Category           string
	SourceAccount      ledger.AccountID
	DestinationAccount ledger.AccountID // Set only when IsTransfer
	IsIncome           bool
	IsTransfer         bool
	FeeAmount          int64 // Transfers only; 0 = no fee leg

	// Recurrence
	Frequency Frequency

	// Schedule state
	StartDate   ledger.Date
	EndDate     *ledger.Date
	NextRunDate ledger.Date
	LastRunDate *ledger.Date
	IsActive    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Due reports whether the definition has an occurrence at or before target.
func (d Definition) Due(target ledger.Date) bool {
	return d.IsActive && d.NextRunDate.BeforeOrEqual(target)
}

// Expired reports whether the next occurrence falls past the optional end
// date, meaning the schedule has run its course.
func (d Definition) Expired() bool {
	return d.EndDate != nil && d.NextRunDate.After(*d.EndDate)
}

// =============================================================================
// DEFINITION STORE - Persistence boundary for recurring rules
// =============================================================================

// DefinitionStore persists recurring definitions.
type DefinitionStore interface {
	// SaveDefinition creates or replaces a definition record.
	SaveDefinition(ctx context.Context, def Definition) error

	// GetDefinition returns the definition or ErrDefinitionNotFound.
	GetDefinition(ctx context.Context, id DefinitionID) (*Definition, error)

	// ListDefinitions returns an owner's definitions, optionally only
	// active ones.
	ListDefinitions(ctx context.Context, owner ledger.OwnerID, activeOnly bool) ([]Definition, error)

	// ListDue returns every active definition with NextRunDate <= target.
	// An empty owner means all owners.
	ListDue(ctx context.Context, owner ledger.OwnerID, target ledger.Date) ([]Definition, error)
}

// =============================================================================
// RUN STORE - Atomic commit boundary for a processor run
// =============================================================================

// RunTx is the write surface available inside one atomic run commit.
type RunTx interface {
	// InsertEntries stages postings; entries whose fingerprint already
	// exists are skipped as no-ops. Returns the number actually inserted.
	InsertEntries(ctx context.Context, entries []ledger.Entry) (int, error)

	// SaveDefinition persists an advanced (or deactivated) definition.
	SaveDefinition(ctx context.Context, def Definition) error
}

// RunStore is what the due-occurrence processor needs from storage: the due
// query plus an all-or-nothing transaction for the final commit.
type RunStore interface {
	DefinitionStore

	// WithRunTx executes fn within a storage transaction. If fn returns an
	// error the transaction rolls back and nothing from the run persists.
	WithRunTx(ctx context.Context, fn func(tx RunTx) error) error
}
