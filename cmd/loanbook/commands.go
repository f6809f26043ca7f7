package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
)

var (
	errNoClient   = errors.New("-client is required")
	errFutureDate = errors.New("date is after today")
)

// run opens the backends, then runs fn. Errors are printed to errOut.
func (a *app) run(ctx context.Context, fn func() error) subcommands.ExitStatus {
	if err := a.open(ctx); err != nil {
		a.fail(err)
		return subcommands.ExitFailure
	}
	if err := fn(); err != nil {
		a.fail(err)
		if loan.IsClientError(err) || errors.Is(err, errNoClient) || errors.Is(err, errFutureDate) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &loan.ValidationError{Field: field, Value: s, Err: loan.ErrInvalidAmount}
	}
	return d, nil
}

// =============================================================================
// REPORTS
// =============================================================================

type clientsCmd struct{ app *app }

func (*clientsCmd) Name() string     { return "clients" }
func (*clientsCmd) Synopsis() string { return "list every client with totals lent, paid and pending" }
func (*clientsCmd) Usage() string {
	return `loanbook clients

  Lists every client in registration order.
`
}
func (*clientsCmd) SetFlags(*flag.FlagSet) {}

func (c *clientsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		b, err := c.app.store.Load(ctx)
		if err != nil {
			return err
		}
		c.app.print(c.app.renderer.Overview(loan.Overview(b.Clients)))
		return nil
	})
}

type statementCmd struct {
	app    *app
	client string
	asOf   string
}

func (*statementCmd) Name() string     { return "statement" }
func (*statementCmd) Synopsis() string { return "display the account statement of a client" }
func (*statementCmd) Usage() string {
	return `loanbook statement -client <name> [-d <date>]

  Shows every loan of the client with its schedule, balance, late fee and
  payment history as of the given day.
`
}

func (c *statementCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.StringVar(&c.asOf, "d", "", "statement date (defaults to today)")
}

func (c *statementCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		asOf, err := c.app.date(c.asOf)
		if err != nil {
			return err
		}
		b, err := c.app.store.Load(ctx)
		if err != nil {
			return err
		}
		client, err := loan.FindClient(b.Clients, c.client)
		if err != nil {
			return err
		}
		st, err := loan.AccountSnapshot(*client, asOf)
		if err != nil {
			return err
		}
		c.app.print(c.app.renderer.Statement(st))
		return nil
	})
}

type complianceCmd struct {
	app    *app
	client string
	index  int
	asOf   string
}

func (*complianceCmd) Name() string     { return "compliance" }
func (*complianceCmd) Synopsis() string { return "check whether a loan is behind schedule" }
func (*complianceCmd) Usage() string {
	return `loanbook compliance -client <name> -loan <index> [-d <date>]
`
}

func (c *complianceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.IntVar(&c.index, "loan", 0, "loan index, 0 for the first loan")
	f.StringVar(&c.asOf, "d", "", "date to check (defaults to today)")
}

func (c *complianceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		asOf, err := c.app.date(c.asOf)
		if err != nil {
			return err
		}
		b, err := c.app.store.Load(ctx)
		if err != nil {
			return err
		}
		client, err := loan.FindClient(b.Clients, c.client)
		if err != nil {
			return err
		}
		rep, err := loan.Compliance(client, c.index, asOf)
		if err != nil {
			return err
		}
		c.app.print(c.app.renderer.Compliance(rep, asOf))
		return nil
	})
}

type remainingCmd struct {
	app    *app
	client string
	index  int
}

func (*remainingCmd) Name() string     { return "remaining" }
func (*remainingCmd) Synopsis() string { return "display the remaining balance of a loan" }
func (*remainingCmd) Usage() string {
	return `loanbook remaining -client <name> -loan <index>
`
}

func (c *remainingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.IntVar(&c.index, "loan", 0, "loan index, 0 for the first loan")
}

func (c *remainingCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		b, err := c.app.store.Load(ctx)
		if err != nil {
			return err
		}
		client, err := loan.FindClient(b.Clients, c.client)
		if err != nil {
			return err
		}
		l, err := loan.LoanAt(client, c.index)
		if err != nil {
			return err
		}
		c.app.print(c.app.renderer.Remaining(client.Name, c.index, loan.RemainingBalance(*l)))
		return nil
	})
}

type dailyCmd struct {
	app  *app
	date string
}

func (*dailyCmd) Name() string     { return "daily" }
func (*dailyCmd) Synopsis() string { return "display what came in on one day" }
func (*dailyCmd) Usage() string {
	return `loanbook daily [-d <date>]

  Totals the payments dated on the day across all clients and counts the
  loans that still carry a balance.
`
}

func (c *dailyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "summary date (defaults to today)")
}

func (c *dailyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		day, err := c.app.date(c.date)
		if err != nil {
			return err
		}
		b, err := c.app.store.Load(ctx)
		if err != nil {
			return err
		}
		c.app.print(c.app.renderer.DailySummary(loan.Summarize(b.Clients, day)))
		return nil
	})
}

// =============================================================================
// LEDGER MUTATIONS
// =============================================================================

type addClientCmd struct {
	app   *app
	name  string
	phone string
}

func (*addClientCmd) Name() string     { return "add-client" }
func (*addClientCmd) Synopsis() string { return "register a client" }
func (*addClientCmd) Usage() string {
	return `loanbook add-client -name <name> [-phone <phone>]

  Names are unique regardless of case.
`
}

func (c *addClientCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "client name")
	f.StringVar(&c.phone, "phone", "", "contact phone")
}

func (c *addClientCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		var created loan.Client
		err := c.app.update(ctx, func(b *loan.Book) error {
			cl, err := loan.RegisterClient(b, c.name, c.phone)
			if err != nil {
				return err
			}
			created = *cl
			return nil
		})
		if err != nil {
			return err
		}
		c.app.log.InfoContext(ctx, "client registered", logging.FieldClient, created.Name)
		c.app.publish(ctx, events.ClientRegistered(created))
		fmt.Fprintf(c.app.out, "Registered client %s\n", created.Name)
		return nil
	})
}

type addLoanCmd struct {
	app       *app
	client    string
	principal string
	weeks     int
	start     string
}

func (*addLoanCmd) Name() string     { return "add-loan" }
func (*addLoanCmd) Synopsis() string { return "register a loan for a client" }
func (*addLoanCmd) Usage() string {
	return `loanbook add-loan -client <name> -principal <amount> -weeks <n> [-start <date>]
`
}

func (c *addLoanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.StringVar(&c.principal, "principal", "", "amount lent")
	f.IntVar(&c.weeks, "weeks", 0, "term in weeks")
	f.StringVar(&c.start, "start", "", "start date (defaults to today)")
}

func (c *addLoanCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		principal, err := parseAmount("principal", c.principal)
		if err != nil {
			return err
		}
		start, err := c.app.date(c.start)
		if err != nil {
			return err
		}

		var (
			client loan.Client
			index  int
			l      loan.Loan
		)
		err = c.app.update(ctx, func(b *loan.Book) error {
			cl, err := loan.FindClient(b.Clients, c.client)
			if err != nil {
				return err
			}
			created, err := loan.RegisterLoan(cl, principal, c.weeks, start)
			if err != nil {
				return err
			}
			client, index, l = *cl, len(cl.Loans)-1, *created
			return nil
		})
		if err != nil {
			return err
		}
		c.app.log.InfoContext(ctx, "loan registered",
			logging.FieldClient, client.Name,
			logging.FieldLoanIndex, index,
			logging.FieldLoanID, l.ID,
			logging.FieldAmount, l.Principal.String())
		c.app.publish(ctx, events.LoanRegistered(client, index, l))

		installment, _ := loan.WeeklyInstallment(l)
		fmt.Fprintf(c.app.out, "Registered loan %d for %s: %d weekly installments of %s, due %s\n",
			index, client.Name, l.TermWeeks, c.app.renderer.Money(installment), l.DueDate())
		return nil
	})
}

type payCmd struct {
	app    *app
	client string
	index  int
	amount string
	date   string
}

func (*payCmd) Name() string     { return "pay" }
func (*payCmd) Synopsis() string { return "register a payment on a loan" }
func (*payCmd) Usage() string {
	return `loanbook pay -client <name> -loan <index> -amount <amount> [-d <date>]

  Payments are never edited. Use reverse to undo a mistake.
`
}

func (c *payCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.IntVar(&c.index, "loan", 0, "loan index, 0 for the first loan")
	f.StringVar(&c.amount, "amount", "", "amount received")
	f.StringVar(&c.date, "d", "", "payment date (defaults to today)")
}

func (c *payCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		amount, err := parseAmount("amount", c.amount)
		if err != nil {
			return err
		}
		date, err := c.app.pastDate(c.date)
		if err != nil {
			return err
		}

		var (
			client loan.Client
			l      loan.Loan
			p      loan.Payment
		)
		err = c.app.update(ctx, func(b *loan.Book) error {
			cl, err := loan.FindClient(b.Clients, c.client)
			if err != nil {
				return err
			}
			target, err := loan.LoanAt(cl, c.index)
			if err != nil {
				return err
			}
			if p, err = loan.RegisterPayment(target, amount, date); err != nil {
				return err
			}
			client, l = *cl, *target
			return nil
		})
		if err != nil {
			return err
		}
		c.app.log.InfoContext(ctx, "payment registered",
			logging.FieldClient, client.Name,
			logging.FieldLoanIndex, c.index,
			logging.FieldPaymentID, p.ID,
			logging.FieldAmount, p.Amount.String())
		c.app.publish(ctx, events.PaymentRegistered(client, c.index, l, p))

		fmt.Fprintf(c.app.out, "Registered payment %s of %s, remaining %s\n",
			p.ID, c.app.renderer.Money(p.Amount), c.app.renderer.Money(loan.RemainingBalance(l)))
		return nil
	})
}

type reverseCmd struct {
	app     *app
	client  string
	index   int
	payment string
	date    string
	note    string
}

func (*reverseCmd) Name() string     { return "reverse" }
func (*reverseCmd) Synopsis() string { return "offset a mistaken payment" }
func (*reverseCmd) Usage() string {
	return `loanbook reverse -client <name> -loan <index> -payment <id> [-d <date>] [-note <text>]

  Appends an entry that cancels the payment. The original entry stays in
  the history.
`
}

func (c *reverseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.client, "client", "", "client name (case-insensitive)")
	f.IntVar(&c.index, "loan", 0, "loan index, 0 for the first loan")
	f.StringVar(&c.payment, "payment", "", "id of the payment to reverse")
	f.StringVar(&c.date, "d", "", "reversal date (defaults to today)")
	f.StringVar(&c.note, "note", "", "reason for the reversal")
}

func (c *reverseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.app.run(ctx, func() error {
		if c.client == "" {
			return errNoClient
		}
		date, err := c.app.pastDate(c.date)
		if err != nil {
			return err
		}

		var (
			client loan.Client
			l      loan.Loan
			p      loan.Payment
		)
		err = c.app.update(ctx, func(b *loan.Book) error {
			cl, err := loan.FindClient(b.Clients, c.client)
			if err != nil {
				return err
			}
			target, err := loan.LoanAt(cl, c.index)
			if err != nil {
				return err
			}
			if p, err = loan.ReversePayment(target, loan.PaymentID(c.payment), date, c.note); err != nil {
				return err
			}
			client, l = *cl, *target
			return nil
		})
		if err != nil {
			return err
		}
		c.app.log.InfoContext(ctx, "payment reversed",
			logging.FieldClient, client.Name,
			logging.FieldLoanIndex, c.index,
			logging.FieldPaymentID, c.payment)
		c.app.publish(ctx, events.PaymentReversed(client, c.index, l, p))

		fmt.Fprintf(c.app.out, "Reversed payment %s, remaining %s\n",
			c.payment, c.app.renderer.Money(loan.RemainingBalance(l)))
		return nil
	})
}

// pastDate is date that also refuses days after today.
func (a *app) pastDate(s string) (loan.Date, error) {
	d, err := a.date(s)
	if err != nil {
		return loan.Date{}, err
	}
	if d.After(a.today()) {
		return loan.Date{}, fmt.Errorf("%s: %w", d, errFutureDate)
	}
	return d, nil
}
