package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/store/sqlite"
)

func statusOf(t *testing.T, b *loan.Book, name string, index int) loan.LoanStatement {
	t.Helper()
	c, err := loan.FindClient(b.Clients, name)
	require.NoError(t, err)
	st, err := loan.AccountSnapshot(*c, testToday)
	require.NoError(t, err)
	require.Greater(t, len(st.Loans), index)
	return st.Loans[index]
}

func TestBuildScenario_Statuses(t *testing.T) {
	tests := []struct {
		scenario string
		client   string
		index    int
		status   loan.Status
	}{
		{"on-schedule", "María López", 0, loan.StatusOnSchedule},
		{"behind", "Juan Pérez", 0, loan.StatusBehind},
		{"overdue", "Rosa Díaz", 0, loan.StatusBehind},
		{"neighborhood", "Ana Torres", 0, loan.StatusOnSchedule},
		{"neighborhood", "Ana Torres", 1, loan.StatusOnSchedule},
		{"neighborhood", "Luis Gómez", 0, loan.StatusBehind},
		{"neighborhood", "Carmen Ruiz", 0, loan.StatusPaidOff},
	}
	for _, tt := range tests {
		t.Run(tt.scenario+"/"+tt.client, func(t *testing.T) {
			b, err := BuildScenario(tt.scenario, testToday)
			require.NoError(t, err)
			assert.Equal(t, tt.status, statusOf(t, b, tt.client, tt.index).Status)
		})
	}
}

func TestBuildScenario_Overdue(t *testing.T) {
	// GIVEN: A 400/4-week loan that fell due five days ago
	b, err := BuildScenario("overdue", testToday)
	require.NoError(t, err)

	ls := statusOf(t, b, "Rosa Díaz", 0)

	// THEN: 5 days * 5% * 400
	assert.Equal(t, 5, ls.DaysLate)
	assertDec(t, "100", ls.LateFee)
	assertDec(t, "150", ls.Remaining)
}

func TestBuildScenario_NeighborhoodSummary(t *testing.T) {
	b, err := BuildScenario("neighborhood", testToday)
	require.NoError(t, err)

	s := loan.Summarize(b.Clients, testToday)
	// Ana's sixth installment, Ana's first on the new loan, Luis' partial
	assertDec(t, "375.5", s.TotalCollected)
	assert.Equal(t, 3, s.PaymentCount)
	assert.Equal(t, 3, s.LoansWithBalance)

	// Yesterday holds the mistyped payment and its reversal
	y := loan.Summarize(b.Clients, testToday.AddDays(-1))
	assertDec(t, "100", y.TotalCollected)
	assert.Equal(t, 2, y.PaymentCount)
	assert.Len(t, y.Payments, 3)
}

func TestBuildScenario_Unknown(t *testing.T) {
	_, err := BuildScenario("nope", testToday)
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestLoadScenario_Endpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rr), len(scenarios))

	rr = ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "neighborhood"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "neighborhood", decode[ScenarioDTO](t, rr).ID)

	rr = ts.do(t, http.MethodGet, "/api/clients", nil)
	assert.Len(t, decode[[]ClientDTO](t, rr), 3)

	rr = ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoadScenario_SQLiteReplacesBook(t *testing.T) {
	// GIVEN: A sqlite store already holding a book
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer st.Close()

	h := NewHandler(st, nil, nil)
	h.Today = func() loan.Date { return testToday }
	ctx := context.Background()

	require.NoError(t, h.loadScenario(ctx, "neighborhood"))

	// WHEN: Loading a smaller scenario on top
	require.NoError(t, h.loadScenario(ctx, "behind"))

	// THEN: Only the new book remains
	b, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, b.Clients, 1)
	assert.Equal(t, "Juan Pérez", b.Clients[0].Name)
	assert.Len(t, b.Clients[0].Loans[0].Payments, 2)
}
