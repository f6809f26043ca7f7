/*
ledger.go - Balance and repayment-schedule math

PURPOSE:
  The derived values of a loan. None of them is stored; each is recomputed
  from the principal, the term and the payment entries every time it is
  needed, so there is no separate balance that can drift out of sync.

SCHEDULE MODEL:
  A loan of P over N weeks is repaid in N equal weekly installments of P/N.
  The first installment is due in the week the loan starts, so on day d
  (d = as_of - start_date, in whole days) the client should have paid
  P/N * (floor(d/7) + 1), never more than P.

  Two week counts are exposed:
    ElapsedWeeksInclusive: floor(d/7) + 1, used by the schedule
    ElapsedWeeks:          floor(d/7),     used for status display
  Both are 0 before the start date.

LATE FEES:
  A loan is late once the due date (start + 7*N days) has passed. Lateness is
  counted in days and each day costs a flat 5% of the principal. The fee
  does not compound and is not capped.

EXAMPLE:
  P=1000, N=10, start=Mar 1
  as_of=Mar 8 -> 7 days, inclusive weeks 2, expected 200
  one payment of 50 -> paid 50, remaining 950, shortfall 150

SEE ALSO:
  - statement.go: Assembles these values into per-loan reports
*/
package loan

import (
	"github.com/shopspring/decimal"
)

// lateFeeRate is the flat daily penalty as a fraction of the principal.
var lateFeeRate = decimal.RequireFromString("0.05")

// =============================================================================
// LOOKUP
// =============================================================================

// FindClient returns the client whose name matches case-insensitively.
func FindClient(clients []*Client, name string) (*Client, error) {
	for _, c := range clients {
		if c.matches(name) {
			return c, nil
		}
	}
	return nil, &NotFoundError{Name: name}
}

// LoanAt returns the client's loan at the given zero-based index.
func LoanAt(c *Client, index int) (*Loan, error) {
	if index < 0 || index >= len(c.Loans) {
		return nil, &InvalidIndexError{Index: index, Count: len(c.Loans)}
	}
	return c.Loans[index], nil
}

// =============================================================================
// BALANCE
// =============================================================================

// TotalPaid sums the loan's ledger entries. Reversals subtract.
func TotalPaid(l Loan) decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		total = total.Add(p.Signed())
	}
	return total
}

// RemainingBalance is principal - paid. Overpayment yields a negative value.
func RemainingBalance(l Loan) decimal.Decimal {
	return l.Principal.Sub(TotalPaid(l))
}

// =============================================================================
// SCHEDULE
// =============================================================================

// ElapsedDays is as_of - start_date in whole days. Negative before the start.
func ElapsedDays(l Loan, asOf Date) int {
	return DaysBetween(l.StartDate, asOf)
}

// ElapsedWeeks counts completed weeks since the start. Clamped at 0.
func ElapsedWeeks(l Loan, asOf Date) int {
	days := ElapsedDays(l, asOf)
	if days < 0 {
		return 0
	}
	return days / 7
}

// ElapsedWeeksInclusive counts the schedule weeks reached, the current
// one included. Clamped at 0.
func ElapsedWeeksInclusive(l Loan, asOf Date) int {
	days := ElapsedDays(l, asOf)
	if days < 0 {
		return 0
	}
	return days/7 + 1
}

// WeeklyInstallment is principal / term_weeks.
func WeeklyInstallment(l Loan) (decimal.Decimal, error) {
	if l.TermWeeks <= 0 {
		return decimal.Zero, &CorruptLoanError{LoanID: l.ID, TermWeeks: l.TermWeeks}
	}
	return l.Principal.Div(decimal.NewFromInt(int64(l.TermWeeks))), nil
}

// ExpectedPaymentToDate is what the schedule asks for by as_of, capped at
// the principal.
func ExpectedPaymentToDate(l Loan, asOf Date) (decimal.Decimal, error) {
	installment, err := WeeklyInstallment(l)
	if err != nil {
		return decimal.Zero, err
	}
	weeks := ElapsedWeeksInclusive(l, asOf)
	if weeks >= l.TermWeeks {
		return l.Principal, nil
	}
	return installment.Mul(decimal.NewFromInt(int64(weeks))), nil
}

// Shortfall is how far behind schedule the client is. Never negative.
func Shortfall(l Loan, asOf Date) (decimal.Decimal, error) {
	expected, err := ExpectedPaymentToDate(l, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Max(decimal.Zero, expected.Sub(TotalPaid(l))), nil
}

// =============================================================================
// LATE FEES
// =============================================================================

// DaysLate counts days past the due date. 0 while the term is running.
func DaysLate(l Loan, asOf Date) int {
	late := ElapsedDays(l, asOf) - l.TermWeeks*7
	if late < 0 {
		return 0
	}
	return late
}

// LateFee is daysLate * 5% * principal, or 0 when daysLate <= 0.
func LateFee(daysLate int, principal decimal.Decimal) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(daysLate)).Mul(lateFeeRate).Mul(principal)
}
