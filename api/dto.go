/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the loan package's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENCODING:
  Money is a decimal string ("100.5"), never a float. Requests accept
  either a JSON number or a string for amounts. Dates are "YYYY-MM-DD".

VALIDATION:
  Validation is done in handlers (through the loan constructors), not in
  DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/loan"
)

// =============================================================================
// CLIENTS
// =============================================================================

// CreateClientRequest registers a borrower.
type CreateClientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ClientDTO is one row of the client overview.
type ClientDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	LoanCount    int             `json:"loan_count"`
	TotalLent    decimal.Decimal `json:"total_lent"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalPending decimal.Decimal `json:"total_pending"`
}

func toClientDTO(t loan.ClientTotals) ClientDTO {
	return ClientDTO{
		ID:           string(t.ClientID),
		Name:         t.Name,
		Phone:        t.Phone,
		LoanCount:    t.LoanCount,
		TotalLent:    t.TotalLent,
		TotalPaid:    t.TotalPaid,
		TotalPending: t.TotalPending,
	}
}

// =============================================================================
// STATEMENTS
// =============================================================================

// StatementDTO is a client's account as of a day.
type StatementDTO struct {
	ClientID string             `json:"client_id"`
	Name     string             `json:"name"`
	Phone    string             `json:"phone"`
	AsOf     loan.Date          `json:"as_of"`
	Loans    []LoanStatementDTO `json:"loans"`
}

// LoanStatementDTO holds the derived values of one loan.
type LoanStatementDTO struct {
	Index             int             `json:"index"`
	ID                string          `json:"id"`
	Principal         decimal.Decimal `json:"principal"`
	TermWeeks         int             `json:"term_weeks"`
	StartDate         loan.Date       `json:"start_date"`
	DueDate           loan.Date       `json:"due_date"`
	WeeklyInstallment decimal.Decimal `json:"weekly_installment"`
	Paid              decimal.Decimal `json:"paid"`
	Remaining         decimal.Decimal `json:"remaining"`
	ElapsedDays       int             `json:"elapsed_days"`
	ElapsedWeeks      int             `json:"elapsed_weeks"`
	ExpectedToDate    decimal.Decimal `json:"expected_to_date"`
	Shortfall         decimal.Decimal `json:"shortfall"`
	DaysLate          int             `json:"days_late"`
	LateFee           decimal.Decimal `json:"late_fee"`
	Status            loan.Status     `json:"status"`
	Payments          []PaymentDTO    `json:"payments"`
}

// PaymentDTO is one ledger entry.
type PaymentDTO struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Date     loan.Date       `json:"date"`
	Reverses string          `json:"reverses,omitempty"`
	Note     string          `json:"note,omitempty"`
}

func toStatementDTO(st loan.Statement) StatementDTO {
	out := StatementDTO{
		ClientID: string(st.ClientID),
		Name:     st.Name,
		Phone:    st.Phone,
		AsOf:     st.AsOf,
		Loans:    make([]LoanStatementDTO, len(st.Loans)),
	}
	for i, ls := range st.Loans {
		payments := make([]PaymentDTO, len(ls.History))
		for j, p := range ls.History {
			payments[j] = PaymentDTO{ID: string(p.ID), Amount: p.Amount, Date: p.Date, Reverses: string(p.Reverses), Note: p.Note}
		}
		out.Loans[i] = LoanStatementDTO{
			Index:             ls.Index,
			ID:                string(ls.LoanID),
			Principal:         ls.Principal,
			TermWeeks:         ls.TermWeeks,
			StartDate:         ls.StartDate,
			DueDate:           ls.DueDate,
			WeeklyInstallment: ls.Installment,
			Paid:              ls.Paid,
			Remaining:         ls.Remaining,
			ElapsedDays:       ls.ElapsedDays,
			ElapsedWeeks:      ls.ElapsedWeeks,
			ExpectedToDate:    ls.Expected,
			Shortfall:         ls.Shortfall,
			DaysLate:          ls.DaysLate,
			LateFee:           ls.LateFee,
			Status:            ls.Status,
			Payments:          payments,
		}
	}
	return out
}

func toPaymentDTO(p loan.Payment) PaymentDTO {
	return PaymentDTO{ID: string(p.ID), Amount: p.Amount, Date: p.Date, Reverses: string(p.Reverses), Note: p.Note}
}

// ComplianceDTO answers "is this loan behind schedule?".
type ComplianceDTO struct {
	Client         string          `json:"client"`
	Index          int             `json:"index"`
	AsOf           loan.Date       `json:"as_of"`
	Principal      decimal.Decimal `json:"principal"`
	Paid           decimal.Decimal `json:"paid"`
	Remaining      decimal.Decimal `json:"remaining"`
	ExpectedToDate decimal.Decimal `json:"expected_to_date"`
	Shortfall      decimal.Decimal `json:"shortfall"`
	Behind         bool            `json:"behind"`
}

// =============================================================================
// LOANS AND PAYMENTS
// =============================================================================

// CreateLoanRequest registers a loan. StartDate defaults to today.
type CreateLoanRequest struct {
	Principal decimal.Decimal `json:"principal"`
	TermWeeks int             `json:"term_weeks"`
	StartDate string          `json:"start_date"`
}

// LoanDTO is a newly registered loan.
type LoanDTO struct {
	Client            string          `json:"client"`
	Index             int             `json:"index"`
	ID                string          `json:"id"`
	Principal         decimal.Decimal `json:"principal"`
	TermWeeks         int             `json:"term_weeks"`
	StartDate         loan.Date       `json:"start_date"`
	DueDate           loan.Date       `json:"due_date"`
	WeeklyInstallment decimal.Decimal `json:"weekly_installment"`
}

// RegisterPaymentRequest appends a payment. Date defaults to today.
type RegisterPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// ReversePaymentRequest offsets an earlier payment. Date defaults to today.
type ReversePaymentRequest struct {
	Date string `json:"date"`
	Note string `json:"note"`
}

// PaymentReceiptDTO echoes the entry and the loan's new balance.
type PaymentReceiptDTO struct {
	Client    string          `json:"client"`
	LoanIndex int             `json:"loan_index"`
	Payment   PaymentDTO      `json:"payment"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

// =============================================================================
// DAILY SUMMARY
// =============================================================================

// DailySummaryDTO is what came in on one day.
type DailySummaryDTO struct {
	Date             loan.Date         `json:"date"`
	TotalCollected   decimal.Decimal   `json:"total_collected"`
	PaymentCount     int               `json:"payment_count"`
	LoansWithBalance int               `json:"loans_with_balance"`
	Payments         []DailyPaymentDTO `json:"payments"`
}

// DailyPaymentDTO is one entry of the day.
type DailyPaymentDTO struct {
	Client    string          `json:"client"`
	LoanID    string          `json:"loan_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reversal  bool            `json:"reversal,omitempty"`
}

func toDailySummaryDTO(s loan.DailySummary) DailySummaryDTO {
	out := DailySummaryDTO{
		Date:             s.Date,
		TotalCollected:   s.TotalCollected,
		PaymentCount:     s.PaymentCount,
		LoansWithBalance: s.LoansWithBalance,
		Payments:         make([]DailyPaymentDTO, len(s.Payments)),
	}
	for i, p := range s.Payments {
		out.Payments[i] = DailyPaymentDTO{
			Client:    p.ClientName,
			LoanID:    string(p.LoanID),
			PaymentID: string(p.PaymentID),
			Amount:    p.Amount,
			Reversal:  p.Reversal,
		}
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo book.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo book.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
