/*
handlers_test.go - HTTP-level tests for the scheduler API

Exercises the full request path through the chi router with an in-memory
store and a fixed clock: account setup, definition lifecycle, the manual
run trigger, and entry listing.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
	"github.com/warp/ledger-engine/recurrence/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router http.Handler
	store  *store.Memory
}

func newTestAPI(t *testing.T, today ledger.Date) *testAPI {
	t.Helper()

	m := store.NewMemory()
	clock := recurrence.FixedClock{Date: today}
	service := recurrence.NewService(m, clock)
	processor := recurrence.NewProcessor(m, m, clock, zerolog.Nop())
	handler := NewHandler(m, m, service, processor, zerolog.Nop())

	return &testAPI{router: NewRouter(handler), store: m}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (a *testAPI) createAccount(t *testing.T, id, owner, currency string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{
		ID: id, OwnerID: owner, Name: id, Currency: currency,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestCreateAccount_MissingFields_Rejected(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))

	rec := api.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{OwnerID: "owner-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAccounts_ScopedToOwner(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))
	api.createAccount(t, "acc-1", "owner-1", "EUR")
	api.createAccount(t, "acc-2", "owner-2", "EUR")

	rec := api.do(t, http.MethodGet, "/api/accounts?owner=owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	accounts := decode[[]AccountDTO](t, rec)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
}

// =============================================================================
// DEFINITION LIFECYCLE
// =============================================================================

func rentRequest() CreateDefinitionRequest {
	day := 1
	return CreateDefinitionRequest{
		OwnerID:       "owner-1",
		Description:   "Rent",
		Amount:        120000,
		Category:      "housing",
		SourceAccount: "acc-checking",
		Frequency:     "monthly",
		DayOfMonth:    &day,
		StartDate:     "2025-03-01",
	}
}

func TestDefinitionLifecycle_CreateGetUpdateDelete(t *testing.T) {
	// GIVEN: A running API
	// WHEN: Walking a definition through create, get, patch, and delete
	// THEN: Each step responds with the expected state transitions

	api := newTestAPI(t, ledger.NewDate(2025, time.February, 20))

	rec := api.do(t, http.MethodPost, "/api/definitions", rentRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[DefinitionDTO](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "monthly", created.Frequency)
	assert.Equal(t, "2025-03-01", created.NextRunDate)
	assert.True(t, created.IsActive)

	rec = api.do(t, http.MethodGet, "/api/definitions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	amount := int64(130000)
	rec = api.do(t, http.MethodPut, "/api/definitions/"+created.ID, UpdateDefinitionRequest{Amount: &amount})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[DefinitionDTO](t, rec)
	assert.Equal(t, int64(130000), updated.Amount)
	assert.Equal(t, "2025-03-01", updated.NextRunDate, "amount patch must not touch the schedule")

	rec = api.do(t, http.MethodDelete, "/api/definitions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/definitions/"+created.ID+"?owner=owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decode[DefinitionDTO](t, rec)
	assert.False(t, after.IsActive, "delete is a soft deactivate")
}

func TestCreateDefinition_InvalidFrequency_400(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.February, 20))

	req := rentRequest()
	req.Frequency = "custom" // no interval_days
	req.DayOfMonth = nil

	rec := api.do(t, http.MethodPost, "/api/definitions", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDefinition_BadDate_400(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.February, 20))

	req := rentRequest()
	req.StartDate = "03/01/2025"

	rec := api.do(t, http.MethodPost, "/api/definitions", req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDefinition_Unknown_404(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.February, 20))

	rec := api.do(t, http.MethodGet, "/api/definitions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDefinition_Unknown_404(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.February, 20))

	rec := api.do(t, http.MethodDelete, "/api/definitions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// MANUAL RUN + ENTRIES
// =============================================================================

func TestRunDue_EndToEnd_PostsAndLists(t *testing.T) {
	// GIVEN: An account and a due monthly definition
	// WHEN: Triggering a manual run for the due date, twice
	// THEN: The first run posts one entry, the second is a no-op, and the
	//       entry shows up in the listing with a display amount

	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))
	api.createAccount(t, "acc-checking", "owner-1", "EUR")

	rec := api.do(t, http.MethodPost, "/api/definitions", rentRequest())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/run", RunRequest{TargetDate: "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[RunResultDTO](t, rec)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Failures)

	rec = api.do(t, http.MethodPost, "/api/run", RunRequest{TargetDate: "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[RunResultDTO](t, rec).Created)

	rec = api.do(t, http.MethodGet, "/api/entries?owner=owner-1&month=2025-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]EntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-120000), entries[0].Amount)
	assert.Equal(t, "-1200.00", entries[0].DisplayAmount)
	assert.Equal(t, "2025-03-01", entries[0].Date)
}

func TestRunDue_EmptyBody_DefaultsToClockToday(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))
	api.createAccount(t, "acc-checking", "owner-1", "EUR")

	rec := api.do(t, http.MethodPost, "/api/definitions", rentRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	out := httptest.NewRecorder()
	api.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())
	assert.Equal(t, 1, decode[RunResultDTO](t, out).Created)
}

func TestRunDue_PartialFailure_Rides200(t *testing.T) {
	// GIVEN: A due definition whose account does not exist
	// WHEN: Triggering a run
	// THEN: The response is still 200 with the failure itemized

	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))

	rec := api.do(t, http.MethodPost, "/api/definitions", rentRequest())
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/run", RunRequest{TargetDate: "2025-03-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[RunResultDTO](t, rec)
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Error, "acc-checking")
}

func TestListEntries_RequiresOwner(t *testing.T) {
	api := newTestAPI(t, ledger.NewDate(2025, time.March, 1))

	rec := api.do(t, http.MethodGet, "/api/entries", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// TRANSFER SCENARIO
// =============================================================================

func TestRunDue_TransferDefinition_ThreeLegsOneTransferID(t *testing.T) {
	// GIVEN: A biweekly savings transfer with a fee, due today
	// WHEN: Running and listing the owner's entries
	// THEN: Three legs post, grouped by a single transfer id

	api := newTestAPI(t, ledger.NewDate(2025, time.March, 3)) // a Monday
	api.createAccount(t, "acc-checking", "owner-1", "EUR")
	api.createAccount(t, "acc-savings", "owner-1", "EUR")

	dow := 0 // Monday
	req := CreateDefinitionRequest{
		OwnerID:            "owner-1",
		Description:        "Savings sweep",
		Amount:             50000,
		Category:           "savings",
		SourceAccount:      "acc-checking",
		DestinationAccount: "acc-savings",
		IsTransfer:         true,
		FeeAmount:          500,
		Frequency:          "biweekly",
		DayOfWeek:          &dow,
		StartDate:          "2025-03-03",
	}
	rec := api.do(t, http.MethodPost, "/api/definitions", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[DefinitionDTO](t, rec)
	// The biweekly rule's first step from a matching start lands one week
	// out (the every-other-week anchor), not on the start itself.
	require.Equal(t, "2025-03-10", created.NextRunDate)

	rec = api.do(t, http.MethodPost, "/api/run", RunRequest{TargetDate: "2025-03-10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 3, decode[RunResultDTO](t, rec).Created)

	rec = api.do(t, http.MethodGet, "/api/entries?owner=owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]EntryDTO](t, rec)
	require.Len(t, entries, 3)

	var total int64
	transferIDs := map[string]bool{}
	for _, e := range entries {
		require.True(t, e.IsTransfer)
		transferIDs[e.TransferID] = true
		total += e.Amount
	}
	assert.Len(t, transferIDs, 1, "all legs share one transfer id")
	assert.Equal(t, int64(-500), total, fmt.Sprintf("legs net to the fee, got %d", total))
}
