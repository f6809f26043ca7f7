/*
scenarios.go - Demo loan books for testing and demonstrations

PURPOSE:

	Provides pre-built books that populate the store with realistic data
	for demos. Every scenario is built relative to today, so statuses
	(on schedule, behind, overdue) stay meaningful whenever it is loaded.

AVAILABLE SCENARIOS:

	on-schedule:  One client who has paid every weekly installment
	behind:       One client two installments short
	overdue:      A loan past its due date, accruing daily late fees
	neighborhood: Several clients, several loans, payments today and a
	              reversal, for the overview and daily summary screens

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Build a book with the loan package's registration functions
 3. Save the book

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "neighborhood"}

NOTE:

	Scenarios replace the book. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Router wiring
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "on-schedule",
		Name:        "On Schedule",
		Description: "A 10-week loan paid installment by installment",
	},
	{
		ID:          "behind",
		Name:        "Behind Schedule",
		Description: "A client who skipped the last two installments",
	},
	{
		ID:          "overdue",
		Name:        "Overdue",
		Description: "A loan past its due date with daily late fees",
	},
	{
		ID:          "neighborhood",
		Name:        "Neighborhood Book",
		Description: "Several clients and loans, payments today and a reversal",
	},
}

// ErrUnknownScenario is returned for an unlisted scenario id.
var ErrUnknownScenario = errors.New("unknown scenario")

// resetter is implemented by stores whose Save only appends (sqlite).
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario replaces the book with a demo book.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.loadScenario(ctx, req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.Log.InfoContext(ctx, "scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	b, err := BuildScenario(id, h.Today())
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.Store.(resetter); ok {
		if err := rs.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
	}
	h.currentScenario = ""
	if err := h.Store.Save(ctx, b); err != nil {
		h.Log.Failed(ctx, logging.OpSave, err, "scenario", id)
		return err
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO BUILDERS
// =============================================================================

// BuildScenario returns the demo book with the given id, dated around today.
func BuildScenario(id string, today loan.Date) (*loan.Book, error) {
	sb := &scenarioBuilder{book: &loan.Book{}}
	switch id {
	case "on-schedule":
		sb.addClient("María López", "555-0101")
		l := sb.addLoan("María López", 1000, 10, today.AddDays(-28))
		for week := 0; week < 5; week++ {
			sb.pay(l, 100, today.AddDays(-28+7*week))
		}
	case "behind":
		sb.addClient("Juan Pérez", "555-0102")
		l := sb.addLoan("Juan Pérez", 600, 6, today.AddDays(-21))
		sb.pay(l, 100, today.AddDays(-21))
		sb.pay(l, 100, today.AddDays(-14))
	case "overdue":
		sb.addClient("Rosa Díaz", "555-0103")
		l := sb.addLoan("Rosa Díaz", 400, 4, today.AddDays(-33))
		sb.pay(l, 100, today.AddDays(-33))
		sb.pay(l, 100, today.AddDays(-26))
		sb.pay(l, 50, today.AddDays(-19))
	case "neighborhood":
		sb.addClient("Ana Torres", "555-0110")
		sb.addClient("Luis Gómez", "555-0111")
		sb.addClient("Carmen Ruiz", "")

		a0 := sb.addLoan("Ana Torres", 2000, 10, today.AddDays(-35))
		for week := 0; week < 6; week++ {
			sb.pay(a0, 200, today.AddDays(-35+7*week))
		}
		a1 := sb.addLoan("Ana Torres", 500, 5, today.AddDays(-3))
		sb.pay(a1, 100, today)

		l0 := sb.addLoan("Luis Gómez", 1200, 12, today.AddDays(-14))
		sb.pay(l0, 100, today.AddDays(-14))
		wrong := sb.pay(l0, 1000, today.AddDays(-1))
		sb.reverse(l0, wrong, today.AddDays(-1), "typed an extra zero")
		sb.pay(l0, 100, today.AddDays(-1))
		sb.pay(l0, 75.5, today)

		c0 := sb.addLoan("Carmen Ruiz", 300, 3, today.AddDays(-60))
		sb.pay(c0, 300, today.AddDays(-40))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if sb.err != nil {
		return nil, sb.err
	}
	return sb.book, nil
}

// loanRef addresses a loan by client name and index so that later appends
// to the book never leave a dangling pointer.
type loanRef struct {
	client string
	index  int
}

// scenarioBuilder records the first error and turns later calls into no-ops.
type scenarioBuilder struct {
	book *loan.Book
	err  error
}

func (sb *scenarioBuilder) addClient(name, phone string) {
	if sb.err != nil {
		return
	}
	_, sb.err = loan.RegisterClient(sb.book, name, phone)
}

func (sb *scenarioBuilder) addLoan(name string, principal float64, weeks int, start loan.Date) loanRef {
	if sb.err != nil {
		return loanRef{}
	}
	c, err := loan.FindClient(sb.book.Clients, name)
	if err != nil {
		sb.err = err
		return loanRef{}
	}
	if _, sb.err = loan.RegisterLoan(c, decimal.NewFromFloat(principal), weeks, start); sb.err != nil {
		return loanRef{}
	}
	return loanRef{client: name, index: len(c.Loans) - 1}
}

func (sb *scenarioBuilder) target(ref loanRef) *loan.Loan {
	if sb.err != nil {
		return nil
	}
	c, err := loan.FindClient(sb.book.Clients, ref.client)
	if err != nil {
		sb.err = err
		return nil
	}
	l, err := loan.LoanAt(c, ref.index)
	if err != nil {
		sb.err = err
		return nil
	}
	return l
}

func (sb *scenarioBuilder) pay(ref loanRef, amount float64, date loan.Date) loan.PaymentID {
	l := sb.target(ref)
	if l == nil {
		return ""
	}
	p, err := loan.RegisterPayment(l, decimal.NewFromFloat(amount), date)
	if err != nil {
		sb.err = err
		return ""
	}
	return p.ID
}

func (sb *scenarioBuilder) reverse(ref loanRef, id loan.PaymentID, date loan.Date, note string) {
	l := sb.target(ref)
	if l == nil {
		return
	}
	_, sb.err = loan.ReversePayment(l, id, date, note)
}
