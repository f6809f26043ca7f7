package loan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DOCUMENT LAYOUT
// =============================================================================
//
// The persisted form of a Book is a single JSON document:
//
//	{
//	    "clients": [
//	        {
//	            "id": "…", "name": "Ana", "phone": "555-0101",
//	            "loans": [
//	                {
//	                    "id": "…", "principal": 1000, "term_weeks": 10,
//	                    "start_date": "2025-03-01",
//	                    "payments": [{"id": "…", "amount": 100, "date": "2025-03-08"}]
//	                }
//	            ]
//	        }
//	    ]
//	}
//
// Amounts are JSON numbers, dates are YYYY-MM-DD strings. Ids are optional on
// read; records written by hand get fresh ones. Loan invariants are NOT
// re-checked on read, so a corrupt term survives decoding and is reported by
// the computation that needs it (WeeklyInstallment).

type document struct {
	Clients []clientDoc `json:"clients"`
}

type clientDoc struct {
	ID    string    `json:"id,omitempty"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
	Loans []loanDoc `json:"loans"`
}

type loanDoc struct {
	ID        string       `json:"id,omitempty"`
	Principal json.Number  `json:"principal"`
	TermWeeks int          `json:"term_weeks"`
	StartDate string       `json:"start_date"`
	Payments  []paymentDoc `json:"payments"`
}

type paymentDoc struct {
	ID       string      `json:"id,omitempty"`
	Amount   json.Number `json:"amount"`
	Date     string      `json:"date"`
	Reverses string      `json:"reverses,omitempty"`
	Note     string      `json:"note,omitempty"`
}

// =============================================================================
// ENCODE
// =============================================================================

// EncodeBook writes the book as an indented JSON document.
func EncodeBook(w io.Writer, b *Book) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(toDocument(b))
}

// MarshalBook returns the JSON document for the book.
func MarshalBook(b *Book) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeBook(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toDocument(b *Book) document {
	doc := document{Clients: make([]clientDoc, 0, len(b.Clients))}
	for _, c := range b.Clients {
		cd := clientDoc{ID: string(c.ID), Name: c.Name, Phone: c.Phone, Loans: make([]loanDoc, 0, len(c.Loans))}
		for _, l := range c.Loans {
			ld := loanDoc{
				ID:        string(l.ID),
				Principal: json.Number(l.Principal.String()),
				TermWeeks: l.TermWeeks,
				StartDate: l.StartDate.String(),
				Payments:  make([]paymentDoc, 0, len(l.Payments)),
			}
			for _, p := range l.Payments {
				ld.Payments = append(ld.Payments, paymentDoc{
					ID:       string(p.ID),
					Amount:   json.Number(p.Amount.String()),
					Date:     p.Date.String(),
					Reverses: string(p.Reverses),
					Note:     p.Note,
				})
			}
			cd.Loans = append(cd.Loans, ld)
		}
		doc.Clients = append(doc.Clients, cd)
	}
	return doc
}

// =============================================================================
// DECODE
// =============================================================================

// DecodeBook reads a JSON document. Empty input decodes to an empty book.
func DecodeBook(r io.Reader) (*Book, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &Book{}, nil
		}
		return nil, fmt.Errorf("decode book: %w", err)
	}
	return fromDocument(doc)
}

// UnmarshalBook decodes a JSON document held in memory.
func UnmarshalBook(data []byte) (*Book, error) {
	return DecodeBook(bytes.NewReader(data))
}

func fromDocument(doc document) (*Book, error) {
	b := &Book{Clients: make([]*Client, 0, len(doc.Clients))}
	for _, cd := range doc.Clients {
		c := &Client{ID: ClientID(cd.ID), Name: cd.Name, Phone: cd.Phone, Loans: make([]*Loan, 0, len(cd.Loans))}
		if c.ID == "" {
			c.ID = newClientID()
		}
		for li, ld := range cd.Loans {
			l, err := loanFromDoc(ld)
			if err != nil {
				return nil, fmt.Errorf("client %q loan %d: %w", cd.Name, li, err)
			}
			c.Loans = append(c.Loans, &l)
		}
		b.Clients = append(b.Clients, c)
	}
	return b, nil
}

func loanFromDoc(ld loanDoc) (Loan, error) {
	principal, err := parseAmount("principal", ld.Principal)
	if err != nil {
		return Loan{}, err
	}
	start, err := ParseDate(ld.StartDate)
	if err != nil {
		return Loan{}, err
	}
	l := Loan{
		ID:        LoanID(ld.ID),
		Principal: principal,
		TermWeeks: ld.TermWeeks,
		StartDate: start,
		Payments:  make([]Payment, 0, len(ld.Payments)),
	}
	if l.ID == "" {
		l.ID = newLoanID()
	}
	for pi, pd := range ld.Payments {
		amount, err := parseAmount("amount", pd.Amount)
		if err != nil {
			return Loan{}, fmt.Errorf("payment %d: %w", pi, err)
		}
		date, err := ParseDate(pd.Date)
		if err != nil {
			return Loan{}, fmt.Errorf("payment %d: %w", pi, err)
		}
		p := Payment{ID: PaymentID(pd.ID), Amount: amount, Date: date, Reverses: PaymentID(pd.Reverses), Note: pd.Note}
		if p.ID == "" {
			p.ID = newPaymentID()
		}
		l.Payments = append(l.Payments, p)
	}
	return l, nil
}

func parseAmount(field string, n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Value: string(n), Err: ErrInvalidAmount}
	}
	return d, nil
}
