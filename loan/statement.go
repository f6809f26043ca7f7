package loan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS
// =============================================================================

// Status classifies a loan against its schedule on a given day.
type Status string

const (
	StatusOnSchedule Status = "on_schedule" // paid at least what the schedule asks
	StatusBehind     Status = "behind"      // shortfall > 0
	StatusPaidOff    Status = "paid_off"    // remaining <= 0
)

// =============================================================================
// ACCOUNT SNAPSHOT - Read-only view of a client's loans
// =============================================================================

// Statement is a client's account as of a day.
type Statement struct {
	ClientID ClientID
	Name     string
	Phone    string
	AsOf     Date
	Loans    []LoanStatement
}

// LoanStatement holds the derived values of one loan.
type LoanStatement struct {
	Index        int
	LoanID       LoanID
	Principal    decimal.Decimal
	TermWeeks    int
	StartDate    Date
	DueDate      Date
	Installment  decimal.Decimal
	Paid         decimal.Decimal
	Remaining    decimal.Decimal
	ElapsedDays  int
	ElapsedWeeks int
	Expected     decimal.Decimal
	Shortfall    decimal.Decimal
	DaysLate     int
	LateFee      decimal.Decimal
	Status       Status
	History      []PaymentLine
}

// PaymentLine is one ledger entry as shown in a payment history.
type PaymentLine struct {
	ID       PaymentID
	Date     Date
	Amount   decimal.Decimal
	Reverses PaymentID
	Note     string
}

// AccountSnapshot computes the statement of every loan of the client.
// It does not mutate the client. A loan with a corrupt term aborts the
// statement with a *CorruptLoanError.
func AccountSnapshot(c Client, asOf Date) (Statement, error) {
	st := Statement{
		ClientID: c.ID,
		Name:     c.Name,
		Phone:    c.Phone,
		AsOf:     asOf,
		Loans:    make([]LoanStatement, 0, len(c.Loans)),
	}
	for i, l := range c.Loans {
		ls, err := loanStatement(i, *l, asOf)
		if err != nil {
			return Statement{}, err
		}
		st.Loans = append(st.Loans, ls)
	}
	return st, nil
}

func loanStatement(index int, l Loan, asOf Date) (LoanStatement, error) {
	installment, err := WeeklyInstallment(l)
	if err != nil {
		return LoanStatement{}, err
	}
	expected, err := ExpectedPaymentToDate(l, asOf)
	if err != nil {
		return LoanStatement{}, err
	}
	shortfall, err := Shortfall(l, asOf)
	if err != nil {
		return LoanStatement{}, err
	}

	paid := TotalPaid(l)
	remaining := l.Principal.Sub(paid)

	// A settled loan accrues no late fee.
	daysLate := 0
	if remaining.IsPositive() {
		daysLate = DaysLate(l, asOf)
	}

	history := make([]PaymentLine, len(l.Payments))
	for i, p := range l.Payments {
		history[i] = PaymentLine{ID: p.ID, Date: p.Date, Amount: p.Amount, Reverses: p.Reverses, Note: p.Note}
	}

	return LoanStatement{
		Index:        index,
		LoanID:       l.ID,
		Principal:    l.Principal,
		TermWeeks:    l.TermWeeks,
		StartDate:    l.StartDate,
		DueDate:      l.DueDate(),
		Installment:  installment,
		Paid:         paid,
		Remaining:    remaining,
		ElapsedDays:  ElapsedDays(l, asOf),
		ElapsedWeeks: ElapsedWeeks(l, asOf),
		Expected:     expected,
		Shortfall:    shortfall,
		DaysLate:     daysLate,
		LateFee:      LateFee(daysLate, l.Principal),
		Status:       status(remaining, shortfall),
		History:      history,
	}, nil
}

func status(remaining, shortfall decimal.Decimal) Status {
	switch {
	case !remaining.IsPositive():
		return StatusPaidOff
	case shortfall.IsPositive():
		return StatusBehind
	default:
		return StatusOnSchedule
	}
}

// =============================================================================
// COMPLIANCE - "Am I up to date on this loan?"
// =============================================================================

// ComplianceReport answers whether a single loan is behind schedule and by
// how much.
type ComplianceReport struct {
	ClientName string
	Index      int
	Principal  decimal.Decimal
	Paid       decimal.Decimal
	Remaining  decimal.Decimal
	Expected   decimal.Decimal
	Shortfall  decimal.Decimal
	Behind     bool
}

// Compliance looks up the client's loan by index and checks it against the
// schedule.
func Compliance(c *Client, index int, asOf Date) (ComplianceReport, error) {
	l, err := LoanAt(c, index)
	if err != nil {
		return ComplianceReport{}, err
	}
	expected, err := ExpectedPaymentToDate(*l, asOf)
	if err != nil {
		return ComplianceReport{}, err
	}
	shortfall, err := Shortfall(*l, asOf)
	if err != nil {
		return ComplianceReport{}, err
	}
	return ComplianceReport{
		ClientName: c.Name,
		Index:      index,
		Principal:  l.Principal,
		Paid:       TotalPaid(*l),
		Remaining:  RemainingBalance(*l),
		Expected:   expected,
		Shortfall:  shortfall,
		Behind:     shortfall.IsPositive(),
	}, nil
}
