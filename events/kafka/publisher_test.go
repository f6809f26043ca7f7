package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/loan"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_WritesKeyedJSON(t *testing.T) {
	// GIVEN: A payment event
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "ledger"}

	c := loan.Client{ID: "client-1", Name: "Ana"}
	l := loan.Loan{ID: "loan-1", Principal: decimal.NewFromInt(1000), TermWeeks: 10}
	pay := loan.Payment{ID: "pay-1", Amount: decimal.RequireFromString("100.50"), Date: loan.NewDate(2025, time.March, 8)}

	// WHEN: Publishing it
	require.NoError(t, p.Publish(context.Background(), events.PaymentRegistered(c, 0, l, pay)))

	// THEN: One message keyed by client id with the event as JSON
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "client-1", string(msg.Key))
	assert.Equal(t, "payment_registered", string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "payment_registered", body["type"])
	assert.Equal(t, "pay-1", body["payment_id"])
	assert.Equal(t, "100.5", body["amount"])
	assert.Equal(t, "2025-03-08", body["date"])
	assert.EqualValues(t, 0, body["loan_index"])
}

func TestPublisher_WrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Publisher{writer: w, topic: "ledger"}

	err := p.Publish(context.Background(), events.DailySummary(loan.DailySummary{TotalCollected: decimal.Zero}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish daily_summary to ledger")
	assert.Contains(t, err.Error(), "broker down")
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}
