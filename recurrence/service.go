/*
service.go - Definition lifecycle: create, update, deactivate, list

PURPOSE:
  Everything that changes a recurring definition OUTSIDE a processor run
  goes through here. The service validates recurrence parameters up front
  (the calculator itself never fails) and owns the next_run_date
  recomputation rules:

  - Create: initial next_run_date computed from start_date; the first
    occurrence lands ON the start date when the rule matches it, and is
    never earlier than the declared start.
  - Update: any frequency-affecting edit recomputes next_run_date from
    today (per the injected clock), not from the stale value.
  - Deactivate: soft; flips is_active and nothing else.

SEE ALSO:
  - frequency.go: Validation per variant
  - processor.go: The only other writer of schedule state
*/
package recurrence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service manages the recurring-definition lifecycle.
type Service struct {
	definitions DefinitionStore
	clock       Clock
}

func NewService(definitions DefinitionStore, clock Clock) *Service {
	return &Service{definitions: definitions, clock: clock}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries everything needed to declare a recurring obligation.
type CreateInput struct {
	OwnerID            ledger.OwnerID
	Description        string
	Amount             int64
	Category           string
	SourceAccount      ledger.AccountID
	DestinationAccount ledger.AccountID
	IsIncome           bool
	IsTransfer         bool
	FeeAmount          int64
	Frequency          Frequency
	StartDate          ledger.Date
	EndDate            *ledger.Date
}

// Create validates the rule and persists it with its initial next_run_date.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Definition, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	def := Definition{
		ID:                 DefinitionID(uuid.NewString()),
		OwnerID:            input.OwnerID,
		Description:        input.Description,
		Amount:             input.Amount,
		Category:           input.Category,
		SourceAccount:      input.SourceAccount,
		DestinationAccount: input.DestinationAccount,
		IsIncome:           input.IsIncome,
		IsTransfer:         input.IsTransfer,
		FeeAmount:          input.FeeAmount,
		Frequency:          input.Frequency,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		NextRunDate:        initialNextRun(input.Frequency, input.StartDate),
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.definitions.SaveDefinition(ctx, def); err != nil {
		return nil, err
	}
	return &def, nil
}

// initialNextRun computes the first occurrence from the declared start.
// Evaluating the rule from the eve of the start date lets a matching start
// date be the first occurrence itself; the clamp keeps the invariant
// next_run_date >= start_date for rules that land earlier.
func initialNextRun(f Frequency, start ledger.Date) ledger.Date {
	next := NextOccurrence(f, start.AddDays(-1))
	if next.Before(start) {
		return start
	}
	return next
}

func validateInput(input CreateInput) error {
	if input.OwnerID == "" {
		return &ValidationError{Field: "owner_id", Reason: "required"}
	}
	if input.Description == "" {
		return &ValidationError{Field: "description", Reason: "required"}
	}
	if input.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if input.SourceAccount == "" {
		return &ValidationError{Field: "source_account", Reason: "required"}
	}
	if input.Frequency == nil {
		return &ValidationError{Field: "frequency", Reason: "required"}
	}
	if input.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "required"}
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	if input.IsTransfer && input.DestinationAccount == "" {
		return &ValidationError{Field: "destination_account", Reason: "required for transfers"}
	}
	if !input.IsTransfer && input.FeeAmount != 0 {
		return &ValidationError{Field: "fee_amount", Reason: "only valid for transfers"}
	}
	if input.FeeAmount < 0 {
		return &ValidationError{Field: "fee_amount", Reason: "must not be negative"}
	}
	if input.IsTransfer && input.IsIncome {
		return &ValidationError{Field: "is_income", Reason: "a transfer is neither income nor expense"}
	}
	return input.Frequency.Validate()
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateInput patches a definition. Nil fields are left unchanged.
type UpdateInput struct {
	Description *string
	Amount      *int64
	Category    *string
	FeeAmount   *int64
	Frequency   Frequency // Non-nil replaces the cadence
	StartDate   *ledger.Date
	EndDate     *ledger.Date
	ClearEnd    bool
	IsActive    *bool
}

// Update applies the patch. If the cadence or start date changes, the next
// occurrence is recomputed from today under the new rule - not advanced from
// the stale next_run_date.
func (s *Service) Update(ctx context.Context, id DefinitionID, patch UpdateInput) (*Definition, error) {
	def, err := s.definitions.GetDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Description != nil {
		if *patch.Description == "" {
			return nil, &ValidationError{Field: "description", Reason: "required"}
		}
		def.Description = *patch.Description
	}
	if patch.Amount != nil {
		if *patch.Amount <= 0 {
			return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
		}
		def.Amount = *patch.Amount
	}
	if patch.Category != nil {
		def.Category = *patch.Category
	}
	if patch.FeeAmount != nil {
		if !def.IsTransfer {
			return nil, &ValidationError{Field: "fee_amount", Reason: "only valid for transfers"}
		}
		if *patch.FeeAmount < 0 {
			return nil, &ValidationError{Field: "fee_amount", Reason: "must not be negative"}
		}
		def.FeeAmount = *patch.FeeAmount
	}
	if patch.IsActive != nil {
		def.IsActive = *patch.IsActive
	}

	rescheduled := false
	if patch.Frequency != nil {
		if err := patch.Frequency.Validate(); err != nil {
			return nil, err
		}
		def.Frequency = patch.Frequency
		rescheduled = true
	}
	if patch.StartDate != nil {
		def.StartDate = *patch.StartDate
		rescheduled = true
	}
	if patch.ClearEnd {
		def.EndDate = nil
	} else if patch.EndDate != nil {
		def.EndDate = patch.EndDate
	}
	if def.EndDate != nil && def.EndDate.Before(def.StartDate) {
		return nil, &ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}

	if rescheduled {
		next := NextOccurrence(def.Frequency, s.clock.Today())
		if next.Before(def.StartDate) {
			next = def.StartDate
		}
		def.NextRunDate = next
	}

	def.UpdatedAt = time.Now().UTC()
	if err := s.definitions.SaveDefinition(ctx, *def); err != nil {
		return nil, err
	}
	return def, nil
}

// =============================================================================
// DEACTIVATE / READ
// =============================================================================

// Deactivate soft-deletes a definition. Hard deletion is not a scheduler
// concern. Returns false when the definition does not exist.
func (s *Service) Deactivate(ctx context.Context, id DefinitionID) (bool, error) {
	def, err := s.definitions.GetDefinition(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	def.IsActive = false
	def.UpdatedAt = time.Now().UTC()
	if err := s.definitions.SaveDefinition(ctx, *def); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns a definition by id.
func (s *Service) Get(ctx context.Context, id DefinitionID) (*Definition, error) {
	return s.definitions.GetDefinition(ctx, id)
}

// List returns an owner's definitions.
func (s *Service) List(ctx context.Context, owner ledger.OwnerID, activeOnly bool) ([]Definition, error) {
	return s.definitions.ListDefinitions(ctx, owner, activeOnly)
}
