/*
Package events describes what happened in the ledger, for consumers outside
the process.

PURPOSE:
  Every successful mutation of a book is followed by one Event. Publishing is
  best-effort and happens after the change is persisted: a publish failure
  is logged by the caller and never rolls the ledger back.

EVENT TYPES:
  client_registered   a client was added
  loan_registered     a loan was added to a client
  payment_registered  a payment entry was appended
  payment_reversed    an offsetting entry was appended
  daily_summary       the scheduler computed a daily summary

IMPLEMENTATIONS:
  - Nop: drops everything (no broker configured)
  - Recorder: keeps events in memory, for tests
  - events/kafka: JSON messages on a Kafka topic

SEE ALSO:
  - api/handlers.go: Publishes after each mutation
  - api/scheduler.go: Publishes daily summaries
*/
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/loan"
)

// Type names an event.
type Type string

const (
	TypeClientRegistered  Type = "client_registered"
	TypeLoanRegistered    Type = "loan_registered"
	TypePaymentRegistered Type = "payment_registered"
	TypePaymentReversed   Type = "payment_reversed"
	TypeDailySummary      Type = "daily_summary"
)

// =============================================================================
// EVENT
// =============================================================================

// Event is the published record. Fields not relevant to a Type are empty.
type Event struct {
	ID         string           `json:"id"`
	Type       Type             `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	ClientID   loan.ClientID    `json:"client_id,omitempty"`
	ClientName string           `json:"client_name,omitempty"`
	LoanID     loan.LoanID      `json:"loan_id,omitempty"`
	LoanIndex  *int             `json:"loan_index,omitempty"`
	PaymentID  loan.PaymentID   `json:"payment_id,omitempty"`
	Reverses   loan.PaymentID   `json:"reverses,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Date       loan.Date        `json:"date,omitzero"`
	TermWeeks  int              `json:"term_weeks,omitempty"`
	Summary    *Summary         `json:"summary,omitempty"`
}

// Summary is the payload of a daily_summary event.
type Summary struct {
	TotalCollected   decimal.Decimal `json:"total_collected"`
	PaymentCount     int             `json:"payment_count"`
	LoansWithBalance int             `json:"loans_with_balance"`
}

// Key is the partitioning key: events of one client stay ordered.
func (e Event) Key() string {
	if e.ClientID != "" {
		return string(e.ClientID)
	}
	return string(e.Type)
}

func newEvent(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

func ClientRegistered(c loan.Client) Event {
	e := newEvent(TypeClientRegistered)
	e.ClientID, e.ClientName = c.ID, c.Name
	return e
}

func LoanRegistered(c loan.Client, index int, l loan.Loan) Event {
	e := newEvent(TypeLoanRegistered)
	e.ClientID, e.ClientName = c.ID, c.Name
	e.LoanID, e.LoanIndex = l.ID, &index
	e.Amount = &l.Principal
	e.Date = l.StartDate
	e.TermWeeks = l.TermWeeks
	return e
}

func PaymentRegistered(c loan.Client, index int, l loan.Loan, p loan.Payment) Event {
	e := newEvent(TypePaymentRegistered)
	e.ClientID, e.ClientName = c.ID, c.Name
	e.LoanID, e.LoanIndex = l.ID, &index
	e.PaymentID, e.Amount, e.Date = p.ID, &p.Amount, p.Date
	return e
}

func PaymentReversed(c loan.Client, index int, l loan.Loan, p loan.Payment) Event {
	e := PaymentRegistered(c, index, l, p)
	e.Type = TypePaymentReversed
	e.Reverses = p.Reverses
	return e
}

func DailySummary(s loan.DailySummary) Event {
	e := newEvent(TypeDailySummary)
	e.Date = s.Date
	e.Summary = &Summary{
		TotalCollected:   s.TotalCollected,
		PaymentCount:     s.PaymentCount,
		LoansWithBalance: s.LoansWithBalance,
	}
	return e
}

// =============================================================================
// PUBLISHERS
// =============================================================================

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the published event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
)
