/*
loanbook - Command line ledger for informal weekly loans

USAGE:
  loanbook [-plain] <command> [flags]

COMMANDS:
  clients       Every client with totals lent, paid and pending
  add-client    Register a client
  add-loan      Register a loan for a client
  pay           Register a payment on a loan
  reverse       Offset a mistaken payment
  statement     Account statement of a client
  compliance    Whether one loan is behind schedule
  remaining     Remaining balance of one loan
  daily         What came in on one day

CONFIGURATION:
  Same environment as the server (DATA_BACKEND, JSON_PATH, SQLITE_DB_PATH,
  REDIS_ADDR, KAFKA_BROKERS, CURRENCY, LOG_LEVEL). A .env file in the
  working directory is read first.

EXAMPLES:
  loanbook add-client -name "Ana Torres" -phone 555-0110
  loanbook add-loan -client "ana torres" -principal 1000 -weeks 10
  loanbook pay -client "ana torres" -loan 0 -amount 100
  loanbook statement -client "ana torres"
*/
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	flag.BoolVar(&a.plain, "plain", false, "print raw markdown instead of styled output")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	register(commander, a)

	flag.Parse()
	status := commander.Execute(context.Background())
	if err := a.Close(); err != nil {
		a.fail(err)
		if status == subcommands.ExitSuccess {
			status = subcommands.ExitFailure
		}
	}
	os.Exit(int(status))
}

// register adds the ledger commands to the commander.
func register(c *subcommands.Commander, a *app) {
	c.Register(&clientsCmd{app: a}, "reports")
	c.Register(&statementCmd{app: a}, "reports")
	c.Register(&complianceCmd{app: a}, "reports")
	c.Register(&remainingCmd{app: a}, "reports")
	c.Register(&dailyCmd{app: a}, "reports")

	c.Register(&addClientCmd{app: a}, "ledger")
	c.Register(&addLoanCmd{app: a}, "ledger")
	c.Register(&payCmd{app: a}, "ledger")
	c.Register(&reverseCmd{app: a}, "ledger")
}
