package recurrence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
	"github.com/warp/ledger-engine/recurrence/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newAccountStore(t *testing.T, accounts ...ledger.Account) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for _, a := range accounts {
		require.NoError(t, m.SaveAccount(context.Background(), a))
	}
	return m
}

func checking() ledger.Account {
	return ledger.Account{ID: "acc-checking", OwnerID: "owner-1", Name: "Checking", Currency: "EUR"}
}

func savings() ledger.Account {
	return ledger.Account{ID: "acc-savings", OwnerID: "owner-1", Name: "Savings", Currency: "EUR"}
}

func rentDefinition() recurrence.Definition {
	return recurrence.Definition{
		ID:            "def-rent",
		OwnerID:       "owner-1",
		Description:   "Rent",
		Amount:        120000,
		Category:      "housing",
		SourceAccount: checking().ID,
		Frequency:     recurrence.Monthly{DayOfMonth: 1},
		StartDate:     ledger.NewDate(2025, time.January, 1),
		NextRunDate:   ledger.NewDate(2025, time.March, 1),
		IsActive:      true,
	}
}

// =============================================================================
// SIMPLE OBLIGATIONS
// =============================================================================

func TestMaterialize_Expense_SingleNegativeEntry(t *testing.T) {
	// GIVEN: A rent definition of 1200.00 from the checking account
	// WHEN: Materializing its March 1 occurrence
	// THEN: Exactly one entry, negated amount, dated at the occurrence

	accounts := newAccountStore(t, checking())
	occurrence := ledger.NewDate(2025, time.March, 1)

	entries, err := recurrence.Materialize(context.Background(), rentDefinition(), accounts, occurrence)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, int64(-120000), e.Amount)
	assert.Equal(t, occurrence, e.Date)
	assert.Equal(t, "EUR", e.Currency)
	assert.Equal(t, "housing", e.Category)
	assert.Equal(t, "2025-03", e.Month)
	assert.False(t, e.IsIncome)
	assert.False(t, e.IsTransfer)
	assert.Empty(t, e.TransferID)
	assert.NotEmpty(t, e.Fingerprint)
}

func TestMaterialize_Income_PositiveEntry(t *testing.T) {
	// GIVEN: A salary definition marked as income
	// WHEN: Materializing an occurrence
	// THEN: The single entry carries the positive amount and IsIncome

	accounts := newAccountStore(t, checking())
	def := rentDefinition()
	def.ID = "def-salary"
	def.Description = "Salary"
	def.IsIncome = true
	def.Amount = 350000

	entries, err := recurrence.Materialize(context.Background(), def, accounts, ledger.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(350000), entries[0].Amount)
	assert.True(t, entries[0].IsIncome)
}

func TestMaterialize_ZeroAmount_Fails(t *testing.T) {
	// GIVEN: A definition whose amount is zero
	// WHEN: Materializing
	// THEN: A MaterializationError wrapping ErrZeroAmount, no entries

	accounts := newAccountStore(t, checking())
	def := rentDefinition()
	def.Amount = 0

	entries, err := recurrence.Materialize(context.Background(), def, accounts, ledger.NewDate(2025, time.March, 1))
	assert.Nil(t, entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrZeroAmount)

	var matErr *recurrence.MaterializationError
	assert.ErrorAs(t, err, &matErr)
	assert.Equal(t, recurrence.DefinitionID("def-rent"), matErr.DefinitionID)
}

func TestMaterialize_MissingSourceAccount_Fails(t *testing.T) {
	accounts := newAccountStore(t)

	entries, err := recurrence.Materialize(context.Background(), rentDefinition(), accounts, ledger.NewDate(2025, time.March, 1))
	assert.Nil(t, entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

// =============================================================================
// TRANSFERS - Fan-out into outgoing / incoming / fee legs
// =============================================================================

func transferDefinition() recurrence.Definition {
	return recurrence.Definition{
		ID:                 "def-transfer",
		OwnerID:            "owner-1",
		Description:        "Monthly savings",
		Amount:             50000,
		Category:           "savings",
		SourceAccount:      checking().ID,
		DestinationAccount: savings().ID,
		IsTransfer:         true,
		FeeAmount:          500,
		Frequency:          recurrence.Monthly{DayOfMonth: 1},
		StartDate:          ledger.NewDate(2025, time.January, 1),
		NextRunDate:        ledger.NewDate(2025, time.March, 1),
		IsActive:           true,
	}
}

func TestMaterialize_TransferWithFee_ThreeLegs(t *testing.T) {
	// GIVEN: A 500.00 transfer with a 5.00 fee
	// WHEN: Materializing one occurrence
	// THEN: Three legs - outgoing -50000, incoming +50000, fee -500 - all
	//       sharing one transfer id and none marked as income

	accounts := newAccountStore(t, checking(), savings())

	entries, err := recurrence.Materialize(context.Background(), transferDefinition(), accounts, ledger.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	outgoing, incoming, fee := entries[0], entries[1], entries[2]

	assert.Equal(t, int64(-50000), outgoing.Amount)
	assert.Equal(t, checking().ID, outgoing.AccountID)
	assert.Equal(t, ledger.TransferOutgoing, outgoing.Transfer)

	assert.Equal(t, int64(50000), incoming.Amount)
	assert.Equal(t, savings().ID, incoming.AccountID)
	assert.Equal(t, ledger.TransferIncoming, incoming.Transfer)

	assert.Equal(t, int64(-500), fee.Amount)
	assert.Equal(t, checking().ID, fee.AccountID)
	assert.Equal(t, ledger.TransferFee, fee.Transfer)

	require.NotEmpty(t, outgoing.TransferID)
	assert.Equal(t, outgoing.TransferID, incoming.TransferID)
	assert.Equal(t, outgoing.TransferID, fee.TransferID)

	for _, e := range entries {
		assert.True(t, e.IsTransfer)
		assert.False(t, e.IsIncome)
	}
}

func TestMaterialize_TransferWithoutFee_TwoLegs(t *testing.T) {
	accounts := newAccountStore(t, checking(), savings())
	def := transferDefinition()
	def.FeeAmount = 0

	entries, err := recurrence.Materialize(context.Background(), def, accounts, ledger.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMaterialize_TransferLegs_DistinctFingerprints(t *testing.T) {
	// GIVEN: The three legs of one transfer occurrence, two of which share
	//        the same absolute amount on different sides
	// WHEN: Comparing their fingerprints
	// THEN: All three are distinct - legs never collide with each other

	accounts := newAccountStore(t, checking(), savings())

	entries, err := recurrence.Materialize(context.Background(), transferDefinition(), accounts, ledger.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Fingerprint], "duplicate fingerprint %s", e.Fingerprint)
		seen[e.Fingerprint] = true
	}
}

func TestMaterialize_RetriedOccurrence_SameFingerprints_FreshTransferID(t *testing.T) {
	// GIVEN: The same transfer occurrence materialized twice
	// WHEN: Comparing the two passes
	// THEN: Fingerprints match leg for leg (the dedupe key), while the
	//       transfer id is freshly minted each pass

	accounts := newAccountStore(t, checking(), savings())
	occurrence := ledger.NewDate(2025, time.March, 1)

	first, err := recurrence.Materialize(context.Background(), transferDefinition(), accounts, occurrence)
	require.NoError(t, err)
	second, err := recurrence.Materialize(context.Background(), transferDefinition(), accounts, occurrence)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint)
	}
	assert.NotEqual(t, first[0].TransferID, second[0].TransferID)
}

func TestMaterialize_TransferMissingDestination_Fails(t *testing.T) {
	accounts := newAccountStore(t, checking())
	def := transferDefinition()
	def.DestinationAccount = ""

	_, err := recurrence.Materialize(context.Background(), def, accounts, ledger.NewDate(2025, time.March, 1))
	require.Error(t, err)
	var matErr *recurrence.MaterializationError
	assert.ErrorAs(t, err, &matErr)
}

func TestMaterialize_LegCurrencyFollowsItsAccount(t *testing.T) {
	// GIVEN: A transfer from a EUR account to a USD account
	// WHEN: Materializing
	// THEN: Each leg carries its own account's currency, amounts untouched

	usdSavings := savings()
	usdSavings.Currency = "USD"
	accounts := newAccountStore(t, checking(), usdSavings)

	entries, err := recurrence.Materialize(context.Background(), transferDefinition(), accounts, ledger.NewDate(2025, time.March, 1))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "EUR", entries[0].Currency)
	assert.Equal(t, "USD", entries[1].Currency)
	assert.Equal(t, "EUR", entries[2].Currency)
}
