/*
materialize.go - Turning a due definition into ledger postings

PURPOSE:
  Given a definition and its occurrence date, produce the 1-3 postings that
  occurrence is worth. Simple obligations yield one signed entry; transfers
  yield an outgoing and an incoming leg (plus a fee leg when configured)
  sharing a freshly minted transfer id.

NO WRITES:
  This component only returns entries. Staging and committing them is the
  processor's job; see processor.go.

FINGERPRINTS:
  Every leg gets a deterministic fingerprint. The leg type joins the
  description in the discriminator so co-created legs of one transfer never
  collide with each other, while retries of the same leg always do.

SEE ALSO:
  - ledger/fingerprint.go: The fingerprint contract
  - processor.go: The caller
*/
package recurrence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/ledger-engine/ledger"
)

// Materialize produces the postings for one due occurrence of a definition.
// Returns a MaterializationError when the rule cannot be honored (missing
// account, zero amount, transfer without destination).
func Materialize(ctx context.Context, def Definition, accounts ledger.AccountStore, occurrence ledger.Date) ([]ledger.Entry, error) {
	if def.Amount == 0 {
		return nil, &MaterializationError{DefinitionID: def.ID, Err: ledger.ErrZeroAmount}
	}

	source, err := accounts.GetAccount(ctx, def.SourceAccount)
	if err != nil {
		return nil, &MaterializationError{DefinitionID: def.ID, Err: fmt.Errorf("source account %s: %w", def.SourceAccount, err)}
	}

	if !def.IsTransfer {
		amount := -def.Amount
		if def.IsIncome {
			amount = def.Amount
		}
		return []ledger.Entry{newEntry(def, source, occurrence, amount, "", ledger.TransferNone)}, nil
	}

	if def.DestinationAccount == "" {
		return nil, &MaterializationError{DefinitionID: def.ID, Err: fmt.Errorf("transfer definition has no destination account")}
	}
	destination, err := accounts.GetAccount(ctx, def.DestinationAccount)
	if err != nil {
		return nil, &MaterializationError{DefinitionID: def.ID, Err: fmt.Errorf("destination account %s: %w", def.DestinationAccount, err)}
	}

	// One fresh transfer id groups all legs of this occurrence. Each leg's
	// currency follows its own account; no conversion happens here.
	transferID := uuid.NewString()

	entries := []ledger.Entry{
		newEntry(def, source, occurrence, -def.Amount, transferID, ledger.TransferOutgoing),
		newEntry(def, destination, occurrence, def.Amount, transferID, ledger.TransferIncoming),
	}
	if def.FeeAmount > 0 {
		entries = append(entries, newEntry(def, source, occurrence, -def.FeeAmount, transferID, ledger.TransferFee))
	}
	return entries, nil
}

func newEntry(def Definition, account *ledger.Account, occurrence ledger.Date, amount int64, transferID string, leg ledger.TransferType) ledger.Entry {
	discriminator := def.Description
	if leg != ledger.TransferNone {
		discriminator = fmt.Sprintf("%s|%s", def.Description, leg)
	}

	return ledger.Entry{
		ID:          ledger.EntryID(uuid.NewString()),
		OwnerID:     def.OwnerID,
		AccountID:   account.ID,
		Date:        occurrence,
		Amount:      amount,
		Currency:    account.Currency,
		Category:    def.Category,
		Source:      def.Description,
		IsIncome:    def.IsIncome && leg == ledger.TransferNone,
		IsTransfer:  leg != ledger.TransferNone,
		TransferID:  transferID,
		Transfer:    leg,
		Month:       occurrence.MonthBucket(),
		Fingerprint: ledger.Fingerprint(occurrence, amount, discriminator, string(def.ID), def.OwnerID),
	}
}
