package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"

	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/factory"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
	"github.com/warp/loan-ledger/renderer"
)

// app is the state shared by every command. The store is opened on first
// use so that "help" works without a configured backend.
type app struct {
	out, errOut io.Writer
	plain       bool
	today       func() loan.Date

	log      *logging.Logger
	store    loan.Store
	events   events.Publisher
	renderer *renderer.Renderer
	backend  *factory.Result
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, today: loan.Today}
}

// open loads the configuration and opens the backends, once.
func (a *app) open(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = a.errOut
	logCfg.Component = logging.ComponentCLI
	a.log = logging.New(logCfg)

	res, err := factory.Open(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	a.backend = res
	a.store, a.events = res.Store, res.Publisher
	a.renderer = renderer.New(cfg.Currency)
	return nil
}

// Close releases the backends opened by open.
func (a *app) Close() error {
	if a.backend == nil {
		return nil
	}
	return a.backend.Close()
}

func (a *app) update(ctx context.Context, fn func(b *loan.Book) error) error {
	return loan.Update(ctx, a.store, fn)
}

func (a *app) publish(ctx context.Context, e events.Event) {
	if err := a.events.Publish(ctx, e); err != nil {
		a.log.Failed(ctx, logging.OpPublish, err, logging.FieldEvent, e.Type)
	}
}

// date parses an optional -date flag; empty means today.
func (a *app) date(s string) (loan.Date, error) {
	if s == "" {
		return a.today(), nil
	}
	return loan.ParseDate(s)
}

// print writes markdown, styled for the terminal unless -plain is set.
func (a *app) print(md string) {
	if a.plain {
		fmt.Fprint(a.out, md)
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprint(a.out, md)
		return
	}
	styled, err := r.Render(md)
	if err != nil {
		fmt.Fprint(a.out, md)
		return
	}
	fmt.Fprint(a.out, styled)
}

func (a *app) fail(err error) {
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
}
