/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Client, loan and payment registration through the router
- Error to status mapping
- Events published after mutations
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/loan/store"
	"github.com/warp/loan-ledger/logging"
)

var testToday = loan.NewDate(2025, time.March, 15)

type testServer struct {
	router   *chi.Mux
	handler  *Handler
	store    *store.Memory
	recorder *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := store.NewMemory()
	rec := &events.Recorder{}
	h := NewHandler(st, rec, logging.Discard())
	h.Today = func() loan.Date { return testToday }
	return &testServer{router: NewRouter(h, []string{"*"}), handler: h, store: st, recorder: rec}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// seedAna registers Ana with a 1000/10-week loan starting March 1st.
func (ts *testServer) seedAna(t *testing.T) {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "Ana", Phone: "555-0101"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = ts.do(t, http.MethodPost, "/api/clients/ana/loans", map[string]any{
		"principal": 1000, "term_weeks": 10, "start_date": "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

// =============================================================================
// CLIENTS
// =============================================================================

func TestCreateClient(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: " Ana ", Phone: "555"})

	require.Equal(t, http.StatusCreated, rr.Code)
	dto := decode[ClientDTO](t, rr)
	assert.Equal(t, "Ana", dto.Name)
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, []events.Type{events.TypeClientRegistered}, ts.recorder.Types())
}

func TestCreateClient_Duplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "Ana"})

	rr := ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "ANA"})

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "duplicate_client", decode[ErrorResponse](t, rr).Code)
	assert.Len(t, ts.recorder.Events(), 1, "no event for the rejected registration")
}

func TestCreateClient_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/clients", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClients(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	ts.do(t, http.MethodPost, "/api/clients/Ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(250), Date: "2025-03-08"})

	rr := ts.do(t, http.MethodGet, "/api/clients", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	rows := decode[[]ClientDTO](t, rr)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].LoanCount)
	assertDec(t, "1000", rows[0].TotalLent)
	assertDec(t, "250", rows[0].TotalPaid)
	assertDec(t, "750", rows[0].TotalPending)
}

func TestListClients_LoadFailure(t *testing.T) {
	// GIVEN: A store that cannot be read
	var logs bytes.Buffer
	h := NewHandler(failingStore{}, &events.Recorder{}, logging.New(logging.Config{Format: "json", Output: &logs}))
	router := NewRouter(h, nil)

	// WHEN
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/clients", nil))

	// THEN: 500, and the failure is logged with its operation
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &rec), logs.String())
	assert.Equal(t, "load failed", rec["msg"])
	assert.Equal(t, logging.OpLoad, rec[logging.FieldOperation])
	assert.Equal(t, logging.ComponentHTTP, rec[logging.FieldComponent])
}

func TestGetClient_Statement(t *testing.T) {
	// GIVEN: Ana's 1000/10-week loan with 50 paid on March 4th
	ts := newTestServer(t)
	ts.seedAna(t)
	rr := ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(50), Date: "2025-03-04"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// WHEN: Asking for the statement on March 8th
	rr = ts.do(t, http.MethodGet, "/api/clients/ANA?as_of=2025-03-08", nil)

	// THEN
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	st := decode[StatementDTO](t, rr)
	require.Len(t, st.Loans, 1)
	l := st.Loans[0]
	assertDec(t, "100", l.WeeklyInstallment)
	assertDec(t, "200", l.ExpectedToDate)
	assertDec(t, "950", l.Remaining)
	assertDec(t, "150", l.Shortfall)
	assert.Equal(t, loan.StatusBehind, l.Status)
	assert.Len(t, l.Payments, 1)
}

func TestGetClient_EscapedName(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "María López"})

	rr := ts.do(t, http.MethodGet, "/api/clients/"+url.PathEscape("maría lópez"), nil)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "María López", decode[StatementDTO](t, rr).Name)
}

func TestGetClient_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown client", "/api/clients/nobody", http.StatusNotFound, "client_not_found"},
		{"malformed as_of", "/api/clients/ana?as_of=08/03/2025", http.StatusBadRequest, "malformed_date"},
		{"loan index out of range", "/api/clients/ana/loans/3", http.StatusBadRequest, "invalid_index"},
		{"loan index not a number", "/api/clients/ana/loans/first", http.StatusBadRequest, "invalid_index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rr).Code)
		})
	}
}

func TestGetClient_CorruptLoan(t *testing.T) {
	// GIVEN: A stored loan with a zero-week term
	ts := newTestServer(t)
	bad := &loan.Book{Clients: []*loan.Client{{
		ID:    "c1",
		Name:  "Ana",
		Loans: []*loan.Loan{{ID: "l1", Principal: decimal.NewFromInt(100), StartDate: testToday}},
	}}}
	require.NoError(t, ts.store.Save(context.Background(), bad))

	rr := ts.do(t, http.MethodGet, "/api/clients/ana", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "corrupt_loan", decode[ErrorResponse](t, rr).Code)
}

// =============================================================================
// LOANS
// =============================================================================

func TestCreateLoan(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "Ana"})

	rr := ts.do(t, http.MethodPost, "/api/clients/ana/loans", map[string]any{"principal": "600", "term_weeks": 6})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	dto := decode[LoanDTO](t, rr)
	assert.Equal(t, 0, dto.Index)
	assert.Equal(t, testToday, dto.StartDate, "start defaults to today")
	assert.Equal(t, testToday.AddDays(42), dto.DueDate)
	assertDec(t, "100", dto.WeeklyInstallment)
	assert.Equal(t, []events.Type{events.TypeClientRegistered, events.TypeLoanRegistered}, ts.recorder.Types())
}

func TestCreateLoan_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/clients", CreateClientRequest{Name: "Ana"})

	for name, body := range map[string]map[string]any{
		"zero principal": {"principal": 0, "term_weeks": 4},
		"zero term":      {"principal": 100, "term_weeks": 0},
		"bad start":      {"principal": 100, "term_weeks": 4, "start_date": "soon"},
	} {
		rr := ts.do(t, http.MethodPost, "/api/clients/ana/loans", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
	}

	rr := ts.do(t, http.MethodPost, "/api/clients/nobody/loans", map[string]any{"principal": 100, "term_weeks": 4})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetLoan_Compliance(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	rr := ts.do(t, http.MethodGet, "/api/clients/ana/loans/0?as_of=2025-03-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rep := decode[ComplianceDTO](t, rr)
	assert.True(t, rep.Behind)
	assertDec(t, "100", rep.Shortfall)

	ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(100), Date: "2025-03-01"})
	rr = ts.do(t, http.MethodGet, "/api/clients/ana/loans/0?as_of=2025-03-01", nil)
	rep = decode[ComplianceDTO](t, rr)
	assert.False(t, rep.Behind)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRegisterPayment(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	rr := ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", map[string]any{"amount": 150.25})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rcpt := decode[PaymentReceiptDTO](t, rr)
	assertDec(t, "150.25", rcpt.Payment.Amount)
	assert.Equal(t, testToday, rcpt.Payment.Date)
	assertDec(t, "849.75", rcpt.Remaining)

	evs := ts.recorder.Events()
	last := evs[len(evs)-1]
	assert.Equal(t, events.TypePaymentRegistered, last.Type)
	assert.Equal(t, loan.PaymentID(rcpt.Payment.ID), last.PaymentID)
}

func TestRegisterPayment_Rejections(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"negative amount", "/api/clients/ana/loans/0/payments", map[string]any{"amount": -5}, http.StatusBadRequest},
		{"future date", "/api/clients/ana/loans/0/payments", map[string]any{"amount": 5, "date": "2025-03-16"}, http.StatusBadRequest},
		{"malformed date", "/api/clients/ana/loans/0/payments", map[string]any{"amount": 5, "date": "mañana"}, http.StatusBadRequest},
		{"bad index", "/api/clients/ana/loans/1/payments", map[string]any{"amount": 5}, http.StatusBadRequest},
		{"unknown client", "/api/clients/bob/loans/0/payments", map[string]any{"amount": 5}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	b, err := ts.store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b.Clients[0].Loans[0].Payments, "nothing was appended")
}

func TestReversePayment(t *testing.T) {
	// GIVEN: A payment of 100
	ts := newTestServer(t)
	ts.seedAna(t)
	rr := ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(100), Date: "2025-03-10"})
	paid := decode[PaymentReceiptDTO](t, rr)

	// WHEN: Reversing it
	path := "/api/clients/ana/loans/0/payments/" + paid.Payment.ID + "/reverse"
	rr = ts.do(t, http.MethodPost, path, ReversePaymentRequest{Note: "bounced"})

	// THEN: Balance back to the principal; original entry kept
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rev := decode[PaymentReceiptDTO](t, rr)
	assert.Equal(t, paid.Payment.ID, rev.Payment.Reverses)
	assertDec(t, "1000", rev.Remaining)

	rr = ts.do(t, http.MethodGet, "/api/clients/ana", nil)
	assert.Len(t, decode[StatementDTO](t, rr).Loans[0].Payments, 2)

	// AND: A second reversal conflicts
	rr = ts.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// AND: Unknown payments are 404
	rr = ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments/nope/reverse", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	assert.Contains(t, ts.recorder.Types(), events.TypePaymentReversed)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetDailySummary(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(100)})
	ts.do(t, http.MethodPost, "/api/clients/ana/loans/0/payments", RegisterPaymentRequest{Amount: decimal.NewFromInt(40), Date: "2025-03-14"})

	rr := ts.do(t, http.MethodGet, "/api/summary/daily", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	s := decode[DailySummaryDTO](t, rr)
	assert.Equal(t, testToday, s.Date)
	assertDec(t, "100", s.TotalCollected)
	assert.Equal(t, 1, s.PaymentCount)
	assert.Equal(t, 1, s.LoansWithBalance)
	require.Len(t, s.Payments, 1)
	assert.Equal(t, "Ana", s.Payments[0].Client)

	rr = ts.do(t, http.MethodGet, "/api/summary/daily?date=2025-03-14", nil)
	assertDec(t, "40", decode[DailySummaryDTO](t, rr).TotalCollected)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
