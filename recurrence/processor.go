/*
processor.go - Due-occurrence batch processor

PURPOSE:
  One RunDue invocation is one logical batch: load every active definition
  whose next occurrence has arrived, materialize each exactly once, advance
  each by exactly one period, and commit everything atomically.

STATE MACHINE PER RUN:
  1. Select:  active definitions with next_run_date <= target
  2. Stage:   per definition, materialize at ITS next_run_date (not the
              target - overdue schedules post on their own due date) and
              advance next_run_date from that same due date
  3. Isolate: a failing definition is recorded and skipped; the rest of the
              batch proceeds untouched
  4. Commit:  staged postings plus advancements persist as one unit; a
              storage failure here rolls back the entire run

CATCH-UP:
  A schedule three periods overdue advances one period per invocation and
  needs three invocations to catch up. A single run never posts more than
  one occurrence per definition.

OVERLAPPING RUNS:
  Nothing here prevents two concurrent invocations from selecting the same
  due definition. Both will stage byte-identical fingerprints and identical
  advancement, so the second insert is absorbed as a no-op and the second
  save is an idempotent overwrite. No double posting either way.

SEE ALSO:
  - materialize.go: Step 2
  - ledger/fingerprint.go: Why the race above is safe
*/
package recurrence

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Failure records one definition that could not be processed in a run.
type Failure struct {
	DefinitionID DefinitionID
	Err          error
}

// RunResult is what every RunDue returns: how many postings were created and
// which definitions failed. Partial failures never surface as an error.
type RunResult struct {
	Created  int
	Failures []Failure
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor orchestrates due-occurrence runs. Single-threaded within one
// logical run; definitions are processed sequentially in unspecified order.
type Processor struct {
	store    RunStore
	accounts ledger.AccountStore
	clock    Clock
	log      zerolog.Logger
}

// NewProcessor creates a processor. The clock supplies the default target
// date when RunDue is invoked with a zero date.
func NewProcessor(store RunStore, accounts ledger.AccountStore, clock Clock, log zerolog.Logger) *Processor {
	return &Processor{store: store, accounts: accounts, clock: clock, log: log}
}

// RunDue processes every definition due at or before target. A zero target
// means "today" per the injected clock.
//
// RunDue only returns an error for total batch failures (the due query or
// the final commit); per-definition problems land in RunResult.Failures.
func (p *Processor) RunDue(ctx context.Context, target ledger.Date) (RunResult, error) {
	if target.IsZero() {
		target = p.clock.Today()
	}

	due, err := p.store.ListDue(ctx, "", target)
	if err != nil {
		return RunResult{}, fmt.Errorf("list due definitions: %w", err)
	}

	var (
		staged   []ledger.Entry
		advanced []Definition
		failures []Failure
	)

	for _, def := range due {
		entries, adv, err := p.processOne(ctx, def)
		if err != nil {
			p.log.Warn().
				Str("definition_id", string(def.ID)).
				Err(err).
				Msg("definition failed, skipping")
			failures = append(failures, Failure{DefinitionID: def.ID, Err: err})
			continue
		}
		staged = append(staged, entries...)
		advanced = append(advanced, adv)
	}

	created := 0
	err = p.store.WithRunTx(ctx, func(tx RunTx) error {
		n, err := tx.InsertEntries(ctx, staged)
		if err != nil {
			return err
		}
		created = n
		for _, def := range advanced {
			if err := tx.SaveDefinition(ctx, def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("commit run: %w", err)
	}

	p.log.Info().
		Str("target", target.String()).
		Int("due", len(due)).
		Int("created", created).
		Int("failed", len(failures)).
		Msg("due-occurrence run committed")
	return RunResult{Created: created, Failures: failures}, nil
}

// processOne materializes one due occurrence and returns the advanced copy
// of the definition. It mutates nothing.
func (p *Processor) processOne(ctx context.Context, def Definition) ([]ledger.Entry, Definition, error) {
	// A schedule past its end date stops posting; it is retired in the same
	// commit instead of being reselected forever.
	if def.Expired() {
		retired := def
		retired.IsActive = false
		return nil, retired, nil
	}

	// The occurrence date is the SCHEDULE's due date, not the run target.
	occurrence := def.NextRunDate

	entries, err := Materialize(ctx, def, p.accounts, occurrence)
	if err != nil {
		return nil, Definition{}, err
	}

	// Advance exactly one period, from the occurrence just processed.
	advancedCopy := def
	last := occurrence
	advancedCopy.LastRunDate = &last
	advancedCopy.NextRunDate = NextOccurrence(def.Frequency, occurrence)

	return entries, advancedCopy, nil
}
