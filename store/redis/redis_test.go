package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/loan"
)

// newTestStore connects to TEST_REDIS_ADDR and uses a throwaway key.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	key := "loanledger:test:" + uuid.NewString()
	s := New(addr, key)
	require.NoError(t, s.Ping(context.Background()))
	t.Cleanup(func() {
		s.client.Del(context.Background(), key)
		s.Close()
	})
	return s
}

func TestStore_EmptyKeyIsEmptyBook(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, b.Clients)
}

func TestStore_WithTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(b *loan.Book) error {
		c, err := loan.RegisterClient(b, "Ana", "")
		if err != nil {
			return err
		}
		_, err = loan.RegisterLoan(c, decimal.NewFromInt(500), 5, loan.NewDate(2025, time.March, 1))
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(b *loan.Book) error {
		_, _ = loan.RegisterClient(b, "Luis", "")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	b, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, b.Clients, 1)
	assert.Len(t, b.Clients[0].Loans, 1)
}

func TestStore_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	// GIVEN: Several goroutines appending payments to the same loan
	s := newTestStore(t)
	ctx := context.Background()
	start := loan.NewDate(2025, time.March, 1)
	require.NoError(t, s.WithTx(ctx, func(b *loan.Book) error {
		c, _ := loan.RegisterClient(b, "Ana", "")
		_, err := loan.RegisterLoan(c, decimal.NewFromInt(1000), 10, start)
		return err
	}))

	// WHEN
	const writers = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(b *loan.Book) error {
				_, err := loan.RegisterPayment(b.Clients[0].Loans[0], decimal.NewFromInt(10), start)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN: Every payment made it
	b, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Clients[0].Loans[0].Payments, writers)
}
