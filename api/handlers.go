/*
handlers.go - HTTP API handlers for the recurring-obligation scheduler

PURPOSE:
  Exposes the scheduler via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the recurrence service and processor.

ENDPOINTS:
  Accounts:
    GET    /api/accounts               List accounts for an owner
    POST   /api/accounts               Create/update an account

  Definitions:
    GET    /api/definitions            List recurring definitions
    POST   /api/definitions            Declare a recurring obligation
    GET    /api/definitions/{id}       Get one definition
    PUT    /api/definitions/{id}       Patch a definition
    DELETE /api/definitions/{id}       Soft-deactivate a definition

  Processing:
    POST   /api/run                    Manual due-occurrence run
    GET    /api/entries                List materialized postings

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors
  Partial run failures are NOT errors; they ride inside the 200 response.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: The automatic daily trigger
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts  ledger.AccountStore
	Entries   ledger.Store
	Service   *recurrence.Service
	Processor *recurrence.Processor

	log zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(accounts ledger.AccountStore, entries ledger.Store, service *recurrence.Service, processor *recurrence.Processor, log zerolog.Logger) *Handler {
	return &Handler{
		Accounts:  accounts,
		Entries:   entries,
		Service:   service,
		Processor: processor,
		log:       log,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts for an owner.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	owner := ledger.OwnerID(r.URL.Query().Get("owner"))

	accounts, err := h.Accounts.ListAccounts(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = AccountDTO{ID: string(a.ID), OwnerID: string(a.OwnerID), Name: a.Name, Currency: a.Currency}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates or updates an account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" || req.Name == "" || req.Currency == "" {
		writeError(w, http.StatusBadRequest, "owner_id, name and currency are required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	account := ledger.Account{
		ID:       ledger.AccountID(req.ID),
		OwnerID:  ledger.OwnerID(req.OwnerID),
		Name:     req.Name,
		Currency: req.Currency,
	}
	if err := h.Accounts.SaveAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save account", err)
		return
	}

	writeJSON(w, http.StatusCreated, AccountDTO{
		ID: req.ID, OwnerID: req.OwnerID, Name: req.Name, Currency: req.Currency,
	})
}

// =============================================================================
// DEFINITION HANDLERS
// =============================================================================

// ListDefinitions returns an owner's recurring definitions.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	owner := ledger.OwnerID(r.URL.Query().Get("owner"))
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	defs, err := h.Service.List(r.Context(), owner, activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list definitions", err)
		return
	}
	writeJSON(w, http.StatusOK, toDefinitionDTOs(defs))
}

// GetDefinition returns a single definition.
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	id := recurrence.DefinitionID(chi.URLParam(r, "id"))

	def, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if recurrence.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Definition not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get definition", err)
		return
	}
	writeJSON(w, http.StatusOK, toDefinitionDTO(*def))
}

// CreateDefinition declares a recurring obligation.
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req CreateDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	freq, err := recurrence.BuildFrequency(recurrence.FrequencyKind(req.Frequency), recurrence.FrequencyParams{
		IntervalDays: req.IntervalDays,
		DayOfWeek:    req.DayOfWeek,
		DayOfMonth:   req.DayOfMonth,
		MonthOfYear:  req.MonthOfYear,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid frequency", err)
		return
	}

	startDate, err := ledger.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	var endDate *ledger.Date
	if req.EndDate != nil {
		d, err := ledger.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
		endDate = &d
	}

	def, err := h.Service.Create(r.Context(), recurrence.CreateInput{
		OwnerID:            ledger.OwnerID(req.OwnerID),
		Description:        req.Description,
		Amount:             req.Amount,
		Category:           req.Category,
		SourceAccount:      ledger.AccountID(req.SourceAccount),
		DestinationAccount: ledger.AccountID(req.DestinationAccount),
		IsIncome:           req.IsIncome,
		IsTransfer:         req.IsTransfer,
		FeeAmount:          req.FeeAmount,
		Frequency:          freq,
		StartDate:          startDate,
		EndDate:            endDate,
	})
	if err != nil {
		if recurrence.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid definition", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create definition", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDefinitionDTO(*def))
}

// UpdateDefinition patches a definition.
func (h *Handler) UpdateDefinition(w http.ResponseWriter, r *http.Request) {
	id := recurrence.DefinitionID(chi.URLParam(r, "id"))

	var req UpdateDefinitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := recurrence.UpdateInput{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    req.Category,
		FeeAmount:   req.FeeAmount,
		ClearEnd:    req.ClearEnd,
		IsActive:    req.IsActive,
	}

	if req.Frequency != nil {
		freq, err := recurrence.BuildFrequency(recurrence.FrequencyKind(*req.Frequency), recurrence.FrequencyParams{
			IntervalDays: req.IntervalDays,
			DayOfWeek:    req.DayOfWeek,
			DayOfMonth:   req.DayOfMonth,
			MonthOfYear:  req.MonthOfYear,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid frequency", err)
			return
		}
		patch.Frequency = freq
	}
	if req.StartDate != nil {
		d, err := ledger.ParseDate(*req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
			return
		}
		patch.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := ledger.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
		patch.EndDate = &d
	}

	def, err := h.Service.Update(r.Context(), id, patch)
	if err != nil {
		switch {
		case recurrence.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Definition not found", nil)
		case recurrence.IsClientError(err):
			writeError(w, http.StatusBadRequest, "Invalid update", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update definition", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toDefinitionDTO(*def))
}

// DeleteDefinition soft-deactivates a definition.
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	id := recurrence.DefinitionID(chi.URLParam(r, "id"))

	ok, err := h.Service.Deactivate(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to deactivate definition", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Definition not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// =============================================================================
// PROCESSING HANDLERS
// =============================================================================

// RunDue triggers a due-occurrence run. The daily scheduler invokes the
// same processor method on its own cadence.
func (h *Handler) RunDue(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	var target ledger.Date
	if req.TargetDate != "" {
		d, err := ledger.ParseDate(req.TargetDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid target_date format (use YYYY-MM-DD)", err)
			return
		}
		target = d
	}

	result, err := h.Processor.RunDue(r.Context(), target)
	if err != nil {
		// Total batch failure only; partial failures ride in the result.
		writeError(w, http.StatusInternalServerError, "Run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResultDTO(result))
}

// ListEntries returns an owner's materialized postings.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	owner := ledger.OwnerID(r.URL.Query().Get("owner"))
	month := r.URL.Query().Get("month")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner query parameter is required", nil)
		return
	}

	entries, err := h.Entries.ListByOwner(r.Context(), owner, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
