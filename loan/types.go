/*
Package loan provides the loan-accounting core of the ledger.

PURPOSE:
  This package tracks informal short-term loans made to individual clients:
  principal, weekly repayment schedule, and incoming payments. Everything
  here is a pure computation over a snapshot (Book) passed in by the caller.
  There is no I/O, no global state and no goroutine in this package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Book: The root aggregate, the full collection of clients
  - Client: A borrower, identified by a case-insensitive unique name
  - Loan: A principal repayable over a fixed number of weeks
  - Payment: An immutable, append-only ledger entry against a loan

DESIGN PRINCIPLES:
  1. Append-only: Payments are never edited or removed, only reversed
  2. Precision: Uses decimal.Decimal, never float64, for money
  3. Explicit snapshot: Callers load a Book, mutate it here, persist it
  4. Typed records: Invariants are enforced by the constructors

USAGE:
  book := &loan.Book{}
  c, err := loan.RegisterClient(book, "Ana", "555-0101")
  l, err := loan.RegisterLoan(c, decimal.NewFromInt(1000), 10, loan.NewDate(2025, 3, 1))
  p, err := loan.RegisterPayment(l, decimal.NewFromInt(100), loan.NewDate(2025, 3, 8))

SEE ALSO:
  - ledger.go: Balance and schedule math
  - statement.go: Account snapshot and compliance reports
  - summary.go: Daily summary and client overview
  - store.go: Record store interface
*/
package loan

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID string
type LoanID string
type PaymentID string

func newClientID() ClientID   { return ClientID(uuid.NewString()) }
func newLoanID() LoanID       { return LoanID(uuid.NewString()) }
func newPaymentID() PaymentID { return PaymentID(uuid.NewString()) }

// =============================================================================
// BOOK - Root aggregate
// =============================================================================

// Book is the full client collection. It is the unit a record store loads
// and persists.
type Book struct {
	Clients []*Client
}

// Clone returns a deep copy of the book. Stores hand out clones so that a
// caller mutating its snapshot never touches the stored state.
func (b *Book) Clone() *Book {
	if b == nil {
		return &Book{}
	}
	out := &Book{Clients: make([]*Client, len(b.Clients))}
	for i, c := range b.Clients {
		out.Clients[i] = c.clone()
	}
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a borrower. Name is the identity key; it is matched
// case-insensitively and never changes once the client exists.
type Client struct {
	ID    ClientID
	Name  string
	Phone string
	Loans []*Loan
}

// NewClient builds a client with a fresh ID. Names are trimmed.
func NewClient(name, phone string) (Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Client{}, ErrInvalidName
	}
	return Client{
		ID:    newClientID(),
		Name:  name,
		Phone: strings.TrimSpace(phone),
	}, nil
}

func (c *Client) clone() *Client {
	out := *c
	out.Loans = make([]*Loan, len(c.Loans))
	for i, l := range c.Loans {
		out.Loans[i] = l.clone()
	}
	return &out
}

// matches reports whether the client is identified by name.
func (c Client) matches(name string) bool {
	return strings.EqualFold(c.Name, strings.TrimSpace(name))
}

// =============================================================================
// LOAN
// =============================================================================

// Loan is a principal repayable in equal weekly installments over TermWeeks
// weeks starting at StartDate. Principal, TermWeeks and StartDate are fixed
// at creation; Payments only grows.
type Loan struct {
	ID        LoanID
	Principal decimal.Decimal
	TermWeeks int
	StartDate Date
	Payments  []Payment
}

// NewLoan validates the loan invariants: principal > 0 and term_weeks > 0.
func NewLoan(principal decimal.Decimal, termWeeks int, start Date) (Loan, error) {
	if !principal.IsPositive() {
		return Loan{}, &ValidationError{Field: "principal", Value: principal.String(), Err: ErrInvalidPrincipal}
	}
	if termWeeks <= 0 {
		return Loan{}, &ValidationError{Field: "term_weeks", Value: strconv.Itoa(termWeeks), Err: ErrInvalidTerm}
	}
	if start.IsZero() {
		return Loan{}, &ValidationError{Field: "start_date", Err: ErrMalformedDate}
	}
	return Loan{
		ID:        newLoanID(),
		Principal: principal,
		TermWeeks: termWeeks,
		StartDate: start,
	}, nil
}

func (l *Loan) clone() *Loan {
	out := *l
	out.Payments = append([]Payment(nil), l.Payments...)
	return &out
}

// DueDate is the day the last installment falls due.
func (l Loan) DueDate() Date {
	return l.StartDate.AddDays(l.TermWeeks * 7)
}

// payment returns the payment with the given id.
func (l *Loan) payment(id PaymentID) (*Payment, bool) {
	for i := range l.Payments {
		if l.Payments[i].ID == id {
			return &l.Payments[i], true
		}
	}
	return nil, false
}

// =============================================================================
// PAYMENT - Immutable ledger entry
// =============================================================================

// Payment is a single entry in a loan's ledger. A reversal is a payment whose
// Reverses field names the entry it offsets; its Amount is the (non-negative)
// amount being taken back.
type Payment struct {
	ID       PaymentID
	Amount   decimal.Decimal
	Date     Date
	Reverses PaymentID
	Note     string
}

// NewPayment validates amount >= 0.
func NewPayment(amount decimal.Decimal, date Date) (Payment, error) {
	if amount.IsNegative() {
		return Payment{}, &ValidationError{Field: "amount", Value: amount.String(), Err: ErrInvalidAmount}
	}
	if date.IsZero() {
		return Payment{}, &ValidationError{Field: "date", Err: ErrMalformedDate}
	}
	return Payment{ID: newPaymentID(), Amount: amount, Date: date}, nil
}

// IsReversal reports whether the entry offsets an earlier payment.
func (p Payment) IsReversal() bool { return p.Reverses != "" }

// Signed returns the entry's effect on the amount paid.
func (p Payment) Signed() decimal.Decimal {
	if p.IsReversal() {
		return p.Amount.Neg()
	}
	return p.Amount
}
