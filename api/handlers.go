/*
handlers.go - HTTP API handlers for the loan ledger

PURPOSE:
  Exposes the loan package via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every computation to package loan.

ENDPOINTS:
  Clients:
    GET    /api/clients                     Overview with per-client totals
    POST   /api/clients                     Register client
    GET    /api/clients/{name}              Account statement (?as_of=)

  Loans:
    POST   /api/clients/{name}/loans        Register loan
    GET    /api/clients/{name}/loans/{idx}  Schedule compliance (?as_of=)

  Payments:
    POST   /api/clients/{name}/loans/{idx}/payments               Register payment
    POST   /api/clients/{name}/loans/{idx}/payments/{id}/reverse  Reverse payment

  Summary:
    GET    /api/summary/daily               Daily summary (?date=)

  Scenarios:
    GET    /api/scenarios                   List demo books
    GET    /api/scenarios/current           Currently loaded demo book
    POST   /api/scenarios/load              Replace the book with a demo book

REQUEST FLOW (mutations):
  1. Parse and validate the request body
  2. Under the handler mutex, loan.Update: load -> mutate -> persist
  3. Publish the matching event (failures are logged, not returned)
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, invalid loan index, malformed date
  - 404: Client or payment not found
  - 409: Duplicate client name, payment already reversed
  - 422: Stored loan is corrupt (term of zero weeks)
  - 500: Storage and other internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo books
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  loan.Store
	Events events.Publisher
	Log    *logging.Logger

	// Today returns the current day. Replaced in tests.
	Today func() loan.Date

	// mu serializes mutations so that find -> mutate -> persist never
	// interleaves, even on stores without WithTx.
	mu sync.Mutex

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler. A nil publisher drops events.
func NewHandler(store loan.Store, publisher events.Publisher, logger *logging.Logger) *Handler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		Store:  store,
		Events: publisher,
		Log:    logger.WithComponent(logging.ComponentHTTP),
		Today:  loan.Today,
	}
}

// update runs fn as one find -> mutate -> persist unit.
func (h *Handler) update(ctx context.Context, fn func(b *loan.Book) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return loan.Update(ctx, h.Store, fn)
}

func (h *Handler) publish(ctx context.Context, e events.Event) {
	if err := h.Events.Publish(ctx, e); err != nil {
		h.Log.Failed(ctx, logging.OpPublish, err,
			logging.FieldEvent, e.Type,
			logging.FieldRequestID, middleware.GetReqID(ctx))
	}
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

// ListClients returns every client with totals lent, paid and pending.
// GET /api/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	b, err := h.Store.Load(r.Context())
	if err != nil {
		h.Log.Failed(r.Context(), logging.OpLoad, err)
		writeError(w, http.StatusInternalServerError, "Failed to load clients", err)
		return
	}

	totals := loan.Overview(b.Clients)
	dtos := make([]ClientDTO, len(totals))
	for i, t := range totals {
		dtos[i] = toClientDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient registers a borrower.
// POST /api/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	var created loan.Client
	err := h.update(ctx, func(b *loan.Book) error {
		c, err := loan.RegisterClient(b, req.Name, req.Phone)
		if err != nil {
			return err
		}
		created = *c
		return nil
	})
	if err != nil {
		writeLoanError(w, err)
		return
	}

	h.Log.InfoContext(ctx, "client registered", logging.FieldClient, created.Name)
	h.publish(ctx, events.ClientRegistered(created))

	writeJSON(w, http.StatusCreated, toClientDTO(loan.Overview([]*loan.Client{&created})[0]))
}

// GetClient returns the account statement of one client.
// GET /api/clients/{name}?as_of=YYYY-MM-DD
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r.URL.Query().Get("as_of"))
	if err != nil {
		writeLoanError(w, err)
		return
	}

	b, err := h.Store.Load(r.Context())
	if err != nil {
		h.Log.Failed(r.Context(), logging.OpLoad, err)
		writeError(w, http.StatusInternalServerError, "Failed to load clients", err)
		return
	}
	c, err := loan.FindClient(b.Clients, clientName(r))
	if err != nil {
		writeLoanError(w, err)
		return
	}
	st, err := loan.AccountSnapshot(*c, asOf)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoan registers a loan for a client.
// POST /api/clients/{name}/loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := h.dateParam(req.StartDate)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	ctx := r.Context()
	var (
		client loan.Client
		index  int
		l      loan.Loan
	)
	err = h.update(ctx, func(b *loan.Book) error {
		c, err := loan.FindClient(b.Clients, clientName(r))
		if err != nil {
			return err
		}
		created, err := loan.RegisterLoan(c, req.Principal, req.TermWeeks, start)
		if err != nil {
			return err
		}
		client, index, l = *c, len(c.Loans)-1, *created
		return nil
	})
	if err != nil {
		writeLoanError(w, err)
		return
	}

	installment, _ := loan.WeeklyInstallment(l)
	h.Log.InfoContext(ctx, "loan registered",
		logging.FieldClient, client.Name,
		logging.FieldLoanIndex, index,
		logging.FieldLoanID, l.ID,
		logging.FieldAmount, l.Principal.String())
	h.publish(ctx, events.LoanRegistered(client, index, l))

	writeJSON(w, http.StatusCreated, LoanDTO{
		Client:            client.Name,
		Index:             index,
		ID:                string(l.ID),
		Principal:         l.Principal,
		TermWeeks:         l.TermWeeks,
		StartDate:         l.StartDate,
		DueDate:           l.DueDate(),
		WeeklyInstallment: installment,
	})
}

// GetLoan reports whether a loan is behind its weekly schedule.
// GET /api/clients/{name}/loans/{idx}?as_of=YYYY-MM-DD
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	index, err := loanIndex(r)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	asOf, err := h.dateParam(r.URL.Query().Get("as_of"))
	if err != nil {
		writeLoanError(w, err)
		return
	}

	b, err := h.Store.Load(r.Context())
	if err != nil {
		h.Log.Failed(r.Context(), logging.OpLoad, err)
		writeError(w, http.StatusInternalServerError, "Failed to load clients", err)
		return
	}
	c, err := loan.FindClient(b.Clients, clientName(r))
	if err != nil {
		writeLoanError(w, err)
		return
	}
	rep, err := loan.Compliance(c, index, asOf)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ComplianceDTO{
		Client:         rep.ClientName,
		Index:          rep.Index,
		AsOf:           asOf,
		Principal:      rep.Principal,
		Paid:           rep.Paid,
		Remaining:      rep.Remaining,
		ExpectedToDate: rep.Expected,
		Shortfall:      rep.Shortfall,
		Behind:         rep.Behind,
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RegisterPayment appends a payment to a loan. Payments cannot be dated in
// the future.
// POST /api/clients/{name}/loans/{idx}/payments
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	index, err := loanIndex(r)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	var req RegisterPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := h.pastDate(req.Date)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	ctx := r.Context()
	var (
		client loan.Client
		l      loan.Loan
		p      loan.Payment
	)
	err = h.update(ctx, func(b *loan.Book) error {
		c, err := loan.FindClient(b.Clients, clientName(r))
		if err != nil {
			return err
		}
		target, err := loan.LoanAt(c, index)
		if err != nil {
			return err
		}
		if p, err = loan.RegisterPayment(target, req.Amount, date); err != nil {
			return err
		}
		client, l = *c, *target
		return nil
	})
	if err != nil {
		writeLoanError(w, err)
		return
	}

	h.Log.InfoContext(ctx, "payment registered",
		logging.FieldClient, client.Name,
		logging.FieldLoanIndex, index,
		logging.FieldPaymentID, p.ID,
		logging.FieldAmount, p.Amount.String())
	h.publish(ctx, events.PaymentRegistered(client, index, l, p))

	writeJSON(w, http.StatusCreated, receipt(client, index, l, p))
}

// ReversePayment appends an entry offsetting an earlier payment.
// POST /api/clients/{name}/loans/{idx}/payments/{id}/reverse
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	index, err := loanIndex(r)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	var req ReversePaymentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	date, err := h.pastDate(req.Date)
	if err != nil {
		writeLoanError(w, err)
		return
	}
	paymentID := loan.PaymentID(chi.URLParam(r, "paymentID"))

	ctx := r.Context()
	var (
		client loan.Client
		l      loan.Loan
		p      loan.Payment
	)
	err = h.update(ctx, func(b *loan.Book) error {
		c, err := loan.FindClient(b.Clients, clientName(r))
		if err != nil {
			return err
		}
		target, err := loan.LoanAt(c, index)
		if err != nil {
			return err
		}
		if p, err = loan.ReversePayment(target, paymentID, date, req.Note); err != nil {
			return err
		}
		client, l = *c, *target
		return nil
	})
	if err != nil {
		writeLoanError(w, err)
		return
	}

	h.Log.InfoContext(ctx, "payment reversed",
		logging.FieldClient, client.Name,
		logging.FieldLoanIndex, index,
		logging.FieldPaymentID, paymentID)
	h.publish(ctx, events.PaymentReversed(client, index, l, p))

	writeJSON(w, http.StatusCreated, receipt(client, index, l, p))
}

func receipt(c loan.Client, index int, l loan.Loan, p loan.Payment) PaymentReceiptDTO {
	return PaymentReceiptDTO{
		Client:    c.Name,
		LoanIndex: index,
		Payment:   toPaymentDTO(p),
		Paid:      loan.TotalPaid(l),
		Remaining: loan.RemainingBalance(l),
	}
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// GetDailySummary aggregates the entries of one day across all clients.
// GET /api/summary/daily?date=YYYY-MM-DD
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	day, err := h.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeLoanError(w, err)
		return
	}
	b, err := h.Store.Load(r.Context())
	if err != nil {
		h.Log.Failed(r.Context(), logging.OpLoad, err)
		writeError(w, http.StatusInternalServerError, "Failed to load clients", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailySummaryDTO(loan.Summarize(b.Clients, day)))
}

// Healthz reports that the store can be read.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Store.Load(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// errFutureDate rejects payments dated after today.
var errFutureDate = errors.New("date is in the future")

// clientName returns the {name} path segment, unescaped.
func clientName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func loanIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "idx")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &loan.ValidationError{Field: "loan index", Value: raw, Err: loan.ErrInvalidIndex}
	}
	return i, nil
}

// dateParam parses an optional date; empty means today.
func (h *Handler) dateParam(s string) (loan.Date, error) {
	if s == "" {
		return h.Today(), nil
	}
	return loan.ParseDate(s)
}

// pastDate is dateParam that also refuses days after today.
func (h *Handler) pastDate(s string) (loan.Date, error) {
	d, err := h.dateParam(s)
	if err != nil {
		return loan.Date{}, err
	}
	if d.After(h.Today()) {
		return loan.Date{}, &loan.ValidationError{Field: "date", Value: d.String(), Err: errFutureDate}
	}
	return d, nil
}

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

// writeLoanError maps ledger errors to HTTP statuses.
func writeLoanError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, loan.ErrClientNotFound):
		return http.StatusNotFound, "client_not_found"
	case errors.Is(err, loan.ErrPaymentNotFound):
		return http.StatusNotFound, "payment_not_found"
	case loan.IsConflict(err):
		return http.StatusConflict, "duplicate_client"
	case loan.IsDataIntegrity(err):
		return http.StatusUnprocessableEntity, "corrupt_loan"
	case errors.Is(err, loan.ErrInvalidIndex):
		return http.StatusBadRequest, "invalid_index"
	case errors.Is(err, loan.ErrMalformedDate):
		return http.StatusBadRequest, "malformed_date"
	case errors.Is(err, loan.ErrAlreadyReversed):
		return http.StatusConflict, "already_reversed"
	case loan.IsClientError(err), errors.Is(err, errFutureDate):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
