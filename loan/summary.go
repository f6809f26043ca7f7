package loan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DAILY SUMMARY - What came in today, and who still owes
// =============================================================================

// DailySummary aggregates all ledger entries dated on one day.
type DailySummary struct {
	Date             Date
	TotalCollected   decimal.Decimal
	PaymentCount     int
	LoansWithBalance int
	Payments         []DailyPayment
}

// DailyPayment is one entry received on the summary day.
type DailyPayment struct {
	ClientName string
	LoanID     LoanID
	PaymentID  PaymentID
	Amount     decimal.Decimal
	Reversal   bool
}

// Summarize partitions every entry across all clients and loans by date.
// Entries dated on asOf are collected; reversals dated that day subtract from
// the total and are listed but not counted as payments received. Separately,
// every loan with a positive remaining balance is counted.
func Summarize(clients []*Client, asOf Date) DailySummary {
	s := DailySummary{Date: asOf, TotalCollected: decimal.Zero}
	for _, c := range clients {
		for _, l := range c.Loans {
			for _, p := range l.Payments {
				if p.Date != asOf {
					continue
				}
				s.TotalCollected = s.TotalCollected.Add(p.Signed())
				if !p.IsReversal() {
					s.PaymentCount++
				}
				s.Payments = append(s.Payments, DailyPayment{
					ClientName: c.Name,
					LoanID:     l.ID,
					PaymentID:  p.ID,
					Amount:     p.Amount,
					Reversal:   p.IsReversal(),
				})
			}
			if RemainingBalance(*l).IsPositive() {
				s.LoansWithBalance++
			}
		}
	}
	return s
}

// =============================================================================
// OVERVIEW - Totals per client
// =============================================================================

// ClientTotals sums a client's loans.
type ClientTotals struct {
	ClientID     ClientID
	Name         string
	Phone        string
	LoanCount    int
	TotalLent    decimal.Decimal
	TotalPaid    decimal.Decimal
	TotalPending decimal.Decimal
}

// Overview returns one line per client in book order.
func Overview(clients []*Client) []ClientTotals {
	out := make([]ClientTotals, 0, len(clients))
	for _, c := range clients {
		t := ClientTotals{
			ClientID:  c.ID,
			Name:      c.Name,
			Phone:     c.Phone,
			LoanCount: len(c.Loans),
			TotalLent: decimal.Zero,
			TotalPaid: decimal.Zero,
		}
		for _, l := range c.Loans {
			t.TotalLent = t.TotalLent.Add(l.Principal)
			t.TotalPaid = t.TotalPaid.Add(TotalPaid(*l))
		}
		t.TotalPending = t.TotalLent.Sub(t.TotalPaid)
		out = append(out, t)
	}
	return out
}
