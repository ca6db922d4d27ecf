/*
Package recurrence turns declarative recurring-obligation rules into dated
ledger postings.

PURPOSE:
  This package contains the scheduler core: the frequency-to-next-date
  calculator, the posting materializer, the due-occurrence batch processor,
  and the definition lifecycle service. It owns no I/O beyond the store
  interfaces it is handed.

KEY CONCEPTS IN THIS FILE (frequency.go):
  - Frequency: A sealed sum type over the six supported cadences
  - NextOccurrence: Pure calculation of the next due date
  - Weekday: 0=Monday..6=Sunday numbering used by weekly rules

DESIGN PRINCIPLES:
  1. Exhaustiveness: Each cadence is its own type; an unhandled variant is
     a compile-time problem, not a silent string-compare fallback
  2. Purity: NextOccurrence has no side effects and never fails for a
     validated rule - parameter validation happens at create/update time
  3. Progress: The next occurrence is always strictly after the reference

SEE ALSO:
  - definition.go: The rule carrying a Frequency
  - service.go: Where Validate() gates create/update
*/
package recurrence

import (
	"fmt"
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// WEEKDAY - 0=Monday .. 6=Sunday
// =============================================================================

// Weekday uses Monday-first numbering, preserved from the reference rules.
// time.Weekday is Sunday-first; convert with WeekdayOf.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayOf converts a time.Weekday (Sunday=0) to Monday-first numbering.
func WeekdayOf(w time.Weekday) Weekday {
	return Weekday((int(w) + 6) % 7)
}

// =============================================================================
// FREQUENCY - Sealed sum type over supported cadences
// =============================================================================

type FrequencyKind string

const (
	KindDaily    FrequencyKind = "daily"
	KindWeekly   FrequencyKind = "weekly"
	KindBiweekly FrequencyKind = "biweekly"
	KindMonthly  FrequencyKind = "monthly"
	KindYearly   FrequencyKind = "yearly"
	KindCustom   FrequencyKind = "custom"
)

// Frequency is the recurrence cadence. The unexported next method seals the
// interface: only the variants in this file can implement it.
type Frequency interface {
	Kind() FrequencyKind

	// Validate checks the variant's parameters. Called at definition
	// create/update time, never during batch processing.
	Validate() error

	next(ref ledger.Date) ledger.Date
}

// NextOccurrence returns the next due date strictly after the reference date.
// Pure and total for any validated Frequency.
func NextOccurrence(f Frequency, ref ledger.Date) ledger.Date {
	return f.next(ref)
}

// =============================================================================
// VARIANTS
// =============================================================================

// Daily recurs every day.
type Daily struct{}

func (Daily) Kind() FrequencyKind { return KindDaily }
func (Daily) Validate() error     { return nil }

func (Daily) next(ref ledger.Date) ledger.Date { return ref.AddDays(1) }

// Weekly recurs on a fixed weekday. If the reference already falls on the
// target weekday, the next occurrence is a full week out - never the same day.
type Weekly struct {
	DayOfWeek Weekday
}

func (Weekly) Kind() FrequencyKind { return KindWeekly }

func (f Weekly) Validate() error {
	if f.DayOfWeek < Monday || f.DayOfWeek > Sunday {
		return &ValidationError{Field: "day_of_week", Reason: "must be 0 (Monday) through 6 (Sunday)"}
	}
	return nil
}

func (f Weekly) next(ref ledger.Date) ledger.Date {
	d := int(f.DayOfWeek) - int(WeekdayOf(ref.Weekday()))
	if d <= 0 {
		d += 7
	}
	return ref.AddDays(d)
}

// Biweekly recurs every other week on a fixed weekday.
//
// The jump is +7 days when the target weekday is still ahead in the reference
// week and +14 otherwise. This asymmetric first-step rule is preserved from
// the reference behavior; see DESIGN.md before changing it.
type Biweekly struct {
	DayOfWeek Weekday
}

func (Biweekly) Kind() FrequencyKind { return KindBiweekly }

func (f Biweekly) Validate() error {
	if f.DayOfWeek < Monday || f.DayOfWeek > Sunday {
		return &ValidationError{Field: "day_of_week", Reason: "must be 0 (Monday) through 6 (Sunday)"}
	}
	return nil
}

func (f Biweekly) next(ref ledger.Date) ledger.Date {
	d := int(f.DayOfWeek) - int(WeekdayOf(ref.Weekday()))
	if d <= 0 {
		return ref.AddDays(d + 14)
	}
	return ref.AddDays(d + 7)
}

// Monthly recurs on a fixed day of the month, clamped to the last valid day
// of short months. The target day is fixed: day 31 lands on Feb 28, then back
// on Mar 31 - it never drifts down permanently.
type Monthly struct {
	DayOfMonth int
}

func (Monthly) Kind() FrequencyKind { return KindMonthly }

func (f Monthly) Validate() error {
	if f.DayOfMonth < 1 || f.DayOfMonth > 31 {
		return &ValidationError{Field: "day_of_month", Reason: "must be 1 through 31"}
	}
	return nil
}

func (f Monthly) next(ref ledger.Date) ledger.Date {
	// First of the following month, normalized by time.Date (Dec -> Jan).
	first := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return ledger.ClampDay(first.Year(), first.Month(), f.DayOfMonth)
}

// Yearly recurs on a fixed month and day, one year out. Feb 29 clamps to
// Feb 28 in non-leap years.
type Yearly struct {
	MonthOfYear time.Month
	DayOfMonth  int
}

func (Yearly) Kind() FrequencyKind { return KindYearly }

func (f Yearly) Validate() error {
	if f.MonthOfYear < time.January || f.MonthOfYear > time.December {
		return &ValidationError{Field: "month_of_year", Reason: "must be 1 through 12"}
	}
	if f.DayOfMonth < 1 || f.DayOfMonth > 31 {
		return &ValidationError{Field: "day_of_month", Reason: "must be 1 through 31"}
	}
	return nil
}

func (f Yearly) next(ref ledger.Date) ledger.Date {
	return ledger.ClampDay(ref.Year()+1, f.MonthOfYear, f.DayOfMonth)
}

// Custom recurs every IntervalDays days. The reference behavior silently
// defaulted a missing interval to 7; here a missing or non-positive interval
// is a validation error instead.
type Custom struct {
	IntervalDays int
}

func (Custom) Kind() FrequencyKind { return KindCustom }

func (f Custom) Validate() error {
	if f.IntervalDays < 1 {
		return &ValidationError{Field: "interval_days", Reason: "must be at least 1"}
	}
	return nil
}

func (f Custom) next(ref ledger.Date) ledger.Date { return ref.AddDays(f.IntervalDays) }

// =============================================================================
// CONSTRUCTION FROM STORED / WIRE PARAMETERS
// =============================================================================

// FrequencyParams is the flattened parameter set as persisted and as carried
// over the API. Only the field the kind needs is consulted.
type FrequencyParams struct {
	IntervalDays *int
	DayOfWeek    *int
	DayOfMonth   *int
	MonthOfYear  *int
}

// BuildFrequency assembles and validates a Frequency from its stored shape.
// A missing required parameter is a ValidationError.
func BuildFrequency(kind FrequencyKind, p FrequencyParams) (Frequency, error) {
	var f Frequency
	switch kind {
	case KindDaily:
		f = Daily{}
	case KindWeekly:
		if p.DayOfWeek == nil {
			return nil, &ValidationError{Field: "day_of_week", Reason: "required for weekly frequency"}
		}
		f = Weekly{DayOfWeek: Weekday(*p.DayOfWeek)}
	case KindBiweekly:
		if p.DayOfWeek == nil {
			return nil, &ValidationError{Field: "day_of_week", Reason: "required for biweekly frequency"}
		}
		f = Biweekly{DayOfWeek: Weekday(*p.DayOfWeek)}
	case KindMonthly:
		if p.DayOfMonth == nil {
			return nil, &ValidationError{Field: "day_of_month", Reason: "required for monthly frequency"}
		}
		f = Monthly{DayOfMonth: *p.DayOfMonth}
	case KindYearly:
		if p.MonthOfYear == nil {
			return nil, &ValidationError{Field: "month_of_year", Reason: "required for yearly frequency"}
		}
		if p.DayOfMonth == nil {
			return nil, &ValidationError{Field: "day_of_month", Reason: "required for yearly frequency"}
		}
		f = Yearly{MonthOfYear: time.Month(*p.MonthOfYear), DayOfMonth: *p.DayOfMonth}
	case KindCustom:
		if p.IntervalDays == nil {
			return nil, &ValidationError{Field: "interval_days", Reason: "required for custom frequency"}
		}
		f = Custom{IntervalDays: *p.IntervalDays}
	default:
		return nil, &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", kind)}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// DecomposeFrequency flattens a Frequency back into its stored shape.
func DecomposeFrequency(f Frequency) (FrequencyKind, FrequencyParams) {
	switch v := f.(type) {
	case Daily:
		return KindDaily, FrequencyParams{}
	case Weekly:
		dow := int(v.DayOfWeek)
		return KindWeekly, FrequencyParams{DayOfWeek: &dow}
	case Biweekly:
		dow := int(v.DayOfWeek)
		return KindBiweekly, FrequencyParams{DayOfWeek: &dow}
	case Monthly:
		dom := v.DayOfMonth
		return KindMonthly, FrequencyParams{DayOfMonth: &dom}
	case Yearly:
		moy := int(v.MonthOfYear)
		dom := v.DayOfMonth
		return KindYearly, FrequencyParams{MonthOfYear: &moy, DayOfMonth: &dom}
	case Custom:
		iv := v.IntervalDays
		return KindCustom, FrequencyParams{IntervalDays: &iv}
	default:
		return "", FrequencyParams{}
	}
}
