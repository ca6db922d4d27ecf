package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
)

func TestParseDate_RoundTripsISO(t *testing.T) {
	d, err := ledger.ParseDate("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, ledger.NewDate(2025, time.March, 1), d)
	assert.Equal(t, "2025-03-01", d.String())
}

func TestParseDate_RejectsGarbage(t *testing.T) {
	_, err := ledger.ParseDate("03/01/2025")
	assert.Error(t, err)
}

func TestDate_ComparisonIgnoresTimeOfDay(t *testing.T) {
	// GIVEN: Two moments on the same calendar day
	// WHEN: Comparing them as dates
	// THEN: They are equal - postings are dated, never timestamped

	morning := ledger.DateOf(time.Date(2025, time.March, 1, 8, 30, 0, 0, time.UTC))
	evening := ledger.DateOf(time.Date(2025, time.March, 1, 23, 59, 59, 0, time.UTC))
	assert.True(t, morning.Equal(evening))
	assert.False(t, morning.Before(evening))
}

func TestDate_AddDaysCrossesYearBoundary(t *testing.T) {
	d := ledger.NewDate(2025, time.December, 30).AddDays(3)
	assert.Equal(t, ledger.NewDate(2026, time.January, 2), d)
}

func TestDaysBetween(t *testing.T) {
	from := ledger.NewDate(2025, time.March, 1)
	to := ledger.NewDate(2025, time.March, 15)
	assert.Equal(t, 14, ledger.DaysBetween(from, to))
	assert.Equal(t, -14, ledger.DaysBetween(to, from))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 28, ledger.DaysInMonth(2025, time.February))
	assert.Equal(t, 29, ledger.DaysInMonth(2024, time.February))
	assert.Equal(t, 30, ledger.DaysInMonth(2025, time.April))
	assert.Equal(t, 31, ledger.DaysInMonth(2025, time.December))
}

func TestClampDay(t *testing.T) {
	assert.Equal(t, ledger.NewDate(2025, time.February, 28), ledger.ClampDay(2025, time.February, 31))
	assert.Equal(t, ledger.NewDate(2024, time.February, 29), ledger.ClampDay(2024, time.February, 30))
	assert.Equal(t, ledger.NewDate(2025, time.April, 30), ledger.ClampDay(2025, time.April, 31))
	assert.Equal(t, ledger.NewDate(2025, time.July, 15), ledger.ClampDay(2025, time.July, 15))
}

func TestMonthBucket(t *testing.T) {
	assert.Equal(t, "2025-03", ledger.NewDate(2025, time.March, 31).MonthBucket())
	assert.Equal(t, "2025-12", ledger.NewDate(2025, time.December, 1).MonthBucket())
}
