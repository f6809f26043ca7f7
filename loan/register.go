package loan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// REGISTRATION - The only mutations of a Book
// =============================================================================
//
// Every write is an append: a client to the book, a loan to a client, a
// payment to a loan. Nothing is updated in place and nothing is removed.
// Corrections are offsetting reversal entries. The caller persists the book
// afterwards (see Update in store.go).

// RegisterClient appends a new client. Names are unique ignoring case.
// The returned client is the one held by the book and stays valid across
// later registrations.
func RegisterClient(b *Book, name, phone string) (*Client, error) {
	c, err := NewClient(name, phone)
	if err != nil {
		return nil, err
	}
	if existing, err := FindClient(b.Clients, c.Name); err == nil {
		return nil, &DuplicateClientError{Name: c.Name, Existing: existing.ID}
	}
	b.Clients = append(b.Clients, &c)
	return &c, nil
}

// RegisterLoan appends a new loan to the client. The returned loan is the
// one held by the client.
func RegisterLoan(c *Client, principal decimal.Decimal, termWeeks int, start Date) (*Loan, error) {
	l, err := NewLoan(principal, termWeeks, start)
	if err != nil {
		return nil, err
	}
	c.Loans = append(c.Loans, &l)
	return &l, nil
}

// RegisterPayment appends a payment entry to the loan.
func RegisterPayment(l *Loan, amount decimal.Decimal, date Date) (Payment, error) {
	p, err := NewPayment(amount, date)
	if err != nil {
		return Payment{}, err
	}
	l.Payments = append(l.Payments, p)
	return p, nil
}

// ReversePayment appends an entry offsetting an earlier payment. The
// original stays in the ledger; TotalPaid nets the two.
func ReversePayment(l *Loan, id PaymentID, date Date, note string) (Payment, error) {
	orig, ok := l.payment(id)
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	if orig.IsReversal() || isReversed(l, id) {
		return Payment{}, ErrAlreadyReversed
	}
	p, err := NewPayment(orig.Amount, date)
	if err != nil {
		return Payment{}, err
	}
	p.Reverses = id
	p.Note = note
	l.Payments = append(l.Payments, p)
	return p, nil
}

func isReversed(l *Loan, id PaymentID) bool {
	for _, p := range l.Payments {
		if p.Reverses == id {
			return true
		}
	}
	return false
}
