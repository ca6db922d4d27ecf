package recurrence

import "github.com/warp/ledger-engine/ledger"

// =============================================================================
// CLOCK - Injected "what day is it" abstraction
// =============================================================================

// Clock answers the only time question the core asks. Injecting it keeps
// "which occurrences are due" testable without a real timer; the trigger
// cadence itself lives with the caller (api/scheduler.go).
type Clock interface {
	Today() ledger.Date
}

type systemClock struct{}

func (systemClock) Today() ledger.Date { return ledger.Today() }

// SystemClock returns a Clock backed by the real UTC calendar.
func SystemClock() Clock { return systemClock{} }

// FixedClock always reports the same day. For tests.
type FixedClock struct {
	Date ledger.Date
}

func (c FixedClock) Today() ledger.Date { return c.Date }
