/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts travel as integer minor units (cents, yen). Responses add a
  display string in major units derived with shopspring/decimal so clients
  never do float math on money.

VALIDATION:
  Validation is done in handlers and the recurrence service, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - recurrence/frequency.go: FrequencyParams, the flattened cadence shape
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	ID       string `json:"id,omitempty"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// DefinitionDTO represents a recurring definition in API responses.
type DefinitionDTO struct {
	ID                 string  `json:"id"`
	OwnerID            string  `json:"owner_id"`
	Description        string  `json:"description"`
	Amount             int64   `json:"amount"`
	Category           string  `json:"category,omitempty"`
	SourceAccount      string  `json:"source_account"`
	DestinationAccount string  `json:"destination_account,omitempty"`
	IsIncome           bool    `json:"is_income"`
	IsTransfer         bool    `json:"is_transfer"`
	FeeAmount          int64   `json:"fee_amount,omitempty"`
	Frequency          string  `json:"frequency"`
	IntervalDays       *int    `json:"interval_days,omitempty"`
	DayOfWeek          *int    `json:"day_of_week,omitempty"`
	DayOfMonth         *int    `json:"day_of_month,omitempty"`
	MonthOfYear        *int    `json:"month_of_year,omitempty"`
	StartDate          string  `json:"start_date"`
	EndDate            *string `json:"end_date,omitempty"`
	NextRunDate        string  `json:"next_run_date"`
	LastRunDate        *string `json:"last_run_date,omitempty"`
	IsActive           bool    `json:"is_active"`
	CreatedAt          string  `json:"created_at,omitempty"`
	UpdatedAt          string  `json:"updated_at,omitempty"`
}

// CreateDefinitionRequest is the request to declare a recurring obligation.
type CreateDefinitionRequest struct {
	OwnerID            string  `json:"owner_id"`
	Description        string  `json:"description"`
	Amount             int64   `json:"amount"`
	Category           string  `json:"category,omitempty"`
	SourceAccount      string  `json:"source_account"`
	DestinationAccount string  `json:"destination_account,omitempty"`
	IsIncome           bool    `json:"is_income"`
	IsTransfer         bool    `json:"is_transfer"`
	FeeAmount          int64   `json:"fee_amount,omitempty"`
	Frequency          string  `json:"frequency"`
	IntervalDays       *int    `json:"interval_days,omitempty"`
	DayOfWeek          *int    `json:"day_of_week,omitempty"`
	DayOfMonth         *int    `json:"day_of_month,omitempty"`
	MonthOfYear        *int    `json:"month_of_year,omitempty"`
	StartDate          string  `json:"start_date"`
	EndDate            *string `json:"end_date,omitempty"`
}

// UpdateDefinitionRequest patches a definition. Absent fields are unchanged;
// a present frequency replaces the whole cadence (with its parameters).
type UpdateDefinitionRequest struct {
	Description  *string `json:"description,omitempty"`
	Amount       *int64  `json:"amount,omitempty"`
	Category     *string `json:"category,omitempty"`
	FeeAmount    *int64  `json:"fee_amount,omitempty"`
	Frequency    *string `json:"frequency,omitempty"`
	IntervalDays *int    `json:"interval_days,omitempty"`
	DayOfWeek    *int    `json:"day_of_week,omitempty"`
	DayOfMonth   *int    `json:"day_of_month,omitempty"`
	MonthOfYear  *int    `json:"month_of_year,omitempty"`
	StartDate    *string `json:"start_date,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	ClearEnd     bool    `json:"clear_end,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// EntryDTO represents a ledger posting in API responses.
type EntryDTO struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	AccountID     string `json:"account_id"`
	Date          string `json:"date"`
	Amount        int64  `json:"amount"`
	DisplayAmount string `json:"display_amount"`
	Currency      string `json:"currency"`
	Category      string `json:"category,omitempty"`
	Source        string `json:"source,omitempty"`
	IsIncome      bool   `json:"is_income"`
	IsTransfer    bool   `json:"is_transfer"`
	TransferID    string `json:"transfer_id,omitempty"`
	TransferType  string `json:"transfer_type"`
	Month         string `json:"month"`
	Fingerprint   string `json:"fingerprint"`
}

// RunRequest is the manual-trigger request body.
type RunRequest struct {
	TargetDate string `json:"target_date,omitempty"` // ISO date; empty = today
}

// RunResultDTO is the structured outcome of a due-occurrence run.
type RunResultDTO struct {
	Created  int             `json:"created"`
	Failures []RunFailureDTO `json:"failures"`
}

// RunFailureDTO reports one definition that failed within a run.
type RunFailureDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDefinitionDTO(def recurrence.Definition) DefinitionDTO {
	kind, params := recurrence.DecomposeFrequency(def.Frequency)

	dto := DefinitionDTO{
		ID:                 string(def.ID),
		OwnerID:            string(def.OwnerID),
		Description:        def.Description,
		Amount:             def.Amount,
		Category:           def.Category,
		SourceAccount:      string(def.SourceAccount),
		DestinationAccount: string(def.DestinationAccount),
		IsIncome:           def.IsIncome,
		IsTransfer:         def.IsTransfer,
		FeeAmount:          def.FeeAmount,
		Frequency:          string(kind),
		IntervalDays:       params.IntervalDays,
		DayOfWeek:          params.DayOfWeek,
		DayOfMonth:         params.DayOfMonth,
		MonthOfYear:        params.MonthOfYear,
		StartDate:          def.StartDate.String(),
		NextRunDate:        def.NextRunDate.String(),
		IsActive:           def.IsActive,
		CreatedAt:          def.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          def.UpdatedAt.Format(time.RFC3339),
	}
	if def.EndDate != nil {
		s := def.EndDate.String()
		dto.EndDate = &s
	}
	if def.LastRunDate != nil {
		s := def.LastRunDate.String()
		dto.LastRunDate = &s
	}
	return dto
}

func toDefinitionDTOs(defs []recurrence.Definition) []DefinitionDTO {
	dtos := make([]DefinitionDTO, len(defs))
	for i, def := range defs {
		dtos[i] = toDefinitionDTO(def)
	}
	return dtos
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		OwnerID:       string(e.OwnerID),
		AccountID:     string(e.AccountID),
		Date:          e.Date.String(),
		Amount:        e.Amount,
		DisplayAmount: displayAmount(e.Amount, e.Currency),
		Currency:      e.Currency,
		Category:      e.Category,
		Source:        e.Source,
		IsIncome:      e.IsIncome,
		IsTransfer:    e.IsTransfer,
		TransferID:    e.TransferID,
		TransferType:  string(e.Transfer),
		Month:         e.Month,
		Fingerprint:   e.Fingerprint,
	}
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toRunResultDTO(result recurrence.RunResult) RunResultDTO {
	failures := make([]RunFailureDTO, len(result.Failures))
	for i, f := range result.Failures {
		failures[i] = RunFailureDTO{ID: string(f.DefinitionID), Error: f.Err.Error()}
	}
	return RunResultDTO{Created: result.Created, Failures: failures}
}

// displayAmount renders minor units in major units for the given currency
// ("-80000" JPY -> "-80000", "-80000" USD -> "-800.00").
func displayAmount(minor int64, currency string) string {
	return decimal.New(minor, -int32(minorUnitDigits(currency))).StringFixed(int32(minorUnitDigits(currency)))
}

func minorUnitDigits(currency string) int {
	switch currency {
	case "JPY", "KRW", "VND":
		return 0
	case "BHD", "KWD", "OMR":
		return 3
	default:
		return 2
	}
}
