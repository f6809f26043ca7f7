package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/loan"
)

var start = loan.NewDate(2025, time.March, 1)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seed registers Ana with one loan and two payments, the second reversing the first.
func seed(t *testing.T, s *Store) {
	t.Helper()
	err := s.WithTx(context.Background(), func(b *loan.Book) error {
		c, err := loan.RegisterClient(b, "Ana", "555-0101")
		if err != nil {
			return err
		}
		l, err := loan.RegisterLoan(c, decimal.RequireFromString("1000.50"), 10, start)
		if err != nil {
			return err
		}
		p, err := loan.RegisterPayment(l, decimal.NewFromInt(100), start.AddDays(7))
		if err != nil {
			return err
		}
		_, err = loan.ReversePayment(l, p.ID, start.AddDays(8), "bounced")
		return err
	})
	require.NoError(t, err)
}

func TestStore_EmptyLoad(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, b.Clients)
}

func TestStore_WithTxPersists(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	b, err := s.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, b.Clients, 1)
	c := b.Clients[0]
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "555-0101", c.Phone)
	require.Len(t, c.Loans, 1)
	l := c.Loans[0]
	assert.True(t, decimal.RequireFromString("1000.5").Equal(l.Principal))
	assert.Equal(t, 10, l.TermWeeks)
	assert.Equal(t, start, l.StartDate)
	require.Len(t, l.Payments, 2)
	assert.Equal(t, l.Payments[0].ID, l.Payments[1].Reverses)
	assert.Equal(t, "bounced", l.Payments[1].Note)
	assert.True(t, loan.TotalPaid(*l).IsZero())
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(b *loan.Book) error {
		c, err := loan.FindClient(b.Clients, "ana")
		require.NoError(t, err)
		_, err = loan.RegisterPayment(c.Loans[0], decimal.NewFromInt(50), start)
		require.NoError(t, err)
		_, err = loan.RegisterClient(b, "ANA", "")
		return err
	})
	assert.True(t, loan.IsConflict(err))

	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Clients[0].Loans[0].Payments, 2, "payment from the failed tx is not stored")
}

func TestStore_SaveKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &loan.Book{}
	for _, name := range []string{"Zoe", "Ana", "Mateo"} {
		c, err := loan.RegisterClient(b, name, "")
		require.NoError(t, err)
		for _, p := range []int64{300, 100, 200} {
			_, err := loan.RegisterLoan(c, decimal.NewFromInt(p), 4, start)
			require.NoError(t, err)
		}
	}
	require.NoError(t, s.Save(ctx, b))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Clients, 3)
	assert.Equal(t, "Zoe", got.Clients[0].Name)
	assert.Equal(t, "Mateo", got.Clients[2].Name)
	for _, c := range got.Clients {
		require.Len(t, c.Loans, 3)
		assert.True(t, c.Loans[0].Principal.Equal(decimal.NewFromInt(300)))
		assert.True(t, c.Loans[1].Principal.Equal(decimal.NewFromInt(100)))
	}
}

func TestStore_SaveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	b, err := s.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, b))
	require.NoError(t, s.Save(ctx, b))

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Clients, 1)
	assert.Len(t, again.Clients[0].Loans[0].Payments, 2)
}

func TestStore_DuplicateNameRejectedByIndex(t *testing.T) {
	// GIVEN: A stored "Ana"
	s := newTestStore(t)
	seed(t, s)

	// WHEN: Saving a different client record named "ANA" directly
	b := &loan.Book{Clients: []*loan.Client{{ID: "other", Name: "ANA"}}}
	err := s.Save(context.Background(), b)

	// THEN: The unique index on lower(name) refuses it
	assert.ErrorIs(t, err, loan.ErrDuplicateClient)
}

func TestStore_PaymentsAreAppendOnly(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	_, err := s.db.Exec(`UPDATE payments SET amount = '1'`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")
}

func TestStore_PaymentsOn(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	n, err := s.PaymentsOn(context.Background(), start.AddDays(7))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))

	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, b.Clients)
}

func TestStore_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := New(path)
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	// Migrations already applied: reopening is a no-op upgrade
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	b, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Clients, 1)
}
