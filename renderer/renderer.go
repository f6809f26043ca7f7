// Package renderer turns ledger reports into markdown for the terminal.
//
// Every function returns plain markdown; cmd/loanbook decides whether to
// style it with glamour or print it as is.
package renderer

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/loan"
)

// Renderer formats money in a single display currency.
type Renderer struct {
	Currency string
}

// New returns a renderer for the given ISO currency code.
func New(currency string) *Renderer {
	return &Renderer{Currency: currency}
}

// Money formats d in the renderer's currency.
func (r *Renderer) Money(d decimal.Decimal) string { return Money(d, r.Currency) }

var statusLabels = map[loan.Status]string{
	loan.StatusOnSchedule: "On schedule",
	loan.StatusBehind:     "Behind",
	loan.StatusPaidOff:    "Paid off",
}

// StatusLabel is the human label of a loan status.
func StatusLabel(s loan.Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// =============================================================================
// STATEMENT
// =============================================================================

// Statement renders a client's account: one section per loan with its
// schedule figures and payment history.
func (r *Renderer) Statement(st loan.Statement) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(escape(st.Name)).LF()
	if st.Phone != "" {
		doc.PlainText("Phone: " + escape(st.Phone)).LF()
	}
	doc.PlainText(fmt.Sprintf("Statement as of %s", st.AsOf)).LF()

	if len(st.Loans) == 0 {
		doc.PlainText(md.Italic("No loans."))
		return finish(doc)
	}

	for _, ls := range st.Loans {
		doc.H2(fmt.Sprintf("Loan %d: %s", ls.Index, StatusLabel(ls.Status))).LF()
		figures := [][]string{
			{"Principal", r.Money(ls.Principal)},
			{"Term", fmt.Sprintf("%d weeks", ls.TermWeeks)},
			{"Start date", ls.StartDate.String()},
			{"Due date", ls.DueDate.String()},
			{"Weekly installment", r.Money(ls.Installment)},
			{"Paid", r.Money(ls.Paid)},
			{"Remaining", r.Money(ls.Remaining)},
			{"Weeks elapsed", fmt.Sprintf("%d (%d days)", ls.ElapsedWeeks, ls.ElapsedDays)},
			{"Expected to date", r.Money(ls.Expected)},
			{"Shortfall", r.Money(ls.Shortfall)},
		}
		if ls.DaysLate > 0 {
			figures = append(figures,
				[]string{"Days late", fmt.Sprint(ls.DaysLate)},
				[]string{"Late fee", r.Money(ls.LateFee)})
		}
		doc.Table(figureTable(figures)).LF()

		if len(ls.History) == 0 {
			doc.PlainText(md.Italic("No payments yet.")).LF()
			continue
		}
		doc.H3("Payments").LF()
		history := md.TableSet{
			Alignment: []md.TableAlignment{md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignLeft},
			Header:    []string{"Date", "Entry", "Amount", "Note"},
		}
		for _, p := range ls.History {
			amount := r.Money(p.Amount)
			note := p.Note
			if p.Reverses != "" {
				amount = "-" + amount
				note = strings.TrimSpace("reverses " + string(p.Reverses) + " " + note)
			}
			history.Rows = append(history.Rows, []string{p.Date.String(), string(p.ID), amount, escape(note)})
		}
		doc.Table(history).LF()
	}
	return finish(doc)
}

// Compliance renders whether one loan is behind schedule.
func (r *Renderer) Compliance(rep loan.ComplianceReport, asOf loan.Date) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s, loan %d", escape(rep.ClientName), rep.Index)).LF()
	if rep.Behind {
		doc.PlainText(fmt.Sprintf("%s as of %s.", md.Bold("Behind schedule by "+r.Money(rep.Shortfall)), asOf)).LF()
	} else {
		doc.PlainText(fmt.Sprintf("%s as of %s.", md.Bold("On schedule"), asOf)).LF()
	}
	doc.Table(figureTable([][]string{
		{"Principal", r.Money(rep.Principal)},
		{"Paid", r.Money(rep.Paid)},
		{"Remaining", r.Money(rep.Remaining)},
		{"Expected to date", r.Money(rep.Expected)},
	}))
	return finish(doc)
}

// =============================================================================
// SUMMARIES
// =============================================================================

// DailySummary renders what came in on one day.
func (r *Renderer) DailySummary(s loan.DailySummary) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Daily summary, %s", s.Date)).LF()
	doc.Table(figureTable([][]string{
		{"Total collected", r.Money(s.TotalCollected)},
		{"Payments received", fmt.Sprint(s.PaymentCount)},
		{"Loans with balance", fmt.Sprint(s.LoansWithBalance)},
	})).LF()
	if len(s.Payments) == 0 {
		doc.PlainText(md.Italic("No payments on this day."))
		return finish(doc)
	}
	payments := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Client", "Amount"},
	}
	for _, p := range s.Payments {
		amount := r.Money(p.Amount)
		if p.Reversal {
			amount = "-" + amount
		}
		payments.Rows = append(payments.Rows, []string{escape(p.ClientName), amount})
	}
	doc.Table(payments)
	return finish(doc)
}

// Overview renders one line per client with totals lent, paid and pending.
func (r *Renderer) Overview(rows []loan.ClientTotals) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Clients").LF()
	if len(rows) == 0 {
		doc.PlainText(md.Italic("No clients registered."))
		return finish(doc)
	}
	table := md.TableSet{
		Alignment: []md.TableAlignment{
			md.AlignLeft,
			md.AlignLeft,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
			md.AlignRight,
		},
		Header: []string{"Client", "Phone", "Loans", "Lent", "Paid", "Pending"},
	}
	for _, t := range rows {
		table.Rows = append(table.Rows, []string{
			escape(t.Name),
			escape(t.Phone),
			fmt.Sprint(t.LoanCount),
			r.Money(t.TotalLent),
			r.Money(t.TotalPaid),
			r.Money(t.TotalPending),
		})
	}
	doc.Table(table)
	return finish(doc)
}

// Remaining renders the balance line of one loan.
func (r *Renderer) Remaining(client string, index int, remaining decimal.Decimal) string {
	return fmt.Sprintf("Remaining balance of %s, loan %d: %s\n", escape(client), index, md.Bold(r.Money(remaining)))
}

// =============================================================================
// HELPERS
// =============================================================================

// finish returns the document with exactly one trailing newline.
func finish(doc *md.Markdown) string {
	return strings.TrimRight(doc.String(), "\n") + "\n"
}

// figureTable lays out label/value pairs with the values right-aligned.
func figureTable(rows [][]string) md.TableSet {
	return md.TableSet{
		Alignment: []md.TableAlignment{md.AlignLeft, md.AlignRight},
		Header:    []string{"Item", "Value"},
		Rows:      rows,
	}
}

var escaper = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`)

func escape(s string) string { return escaper.Replace(s) }
