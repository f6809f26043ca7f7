/*
scheduler.go - Daily summary scheduler

PURPOSE:
  Periodically computes the daily summary for today, logs it and publishes
  a daily_summary event, so a collector sees the day's takings without
  asking for them.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on Start
  - Read-only: loads the book, never saves it
  - Keeps the last summary for inspection

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewSummaryScheduler(store, publisher, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GetDailySummary endpoint (on demand)
  - loan/summary.go: Summarize
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/logging"
)

// SummaryScheduler publishes the daily summary on a ticker.
type SummaryScheduler struct {
	Store    loan.Store
	Events   events.Publisher
	Log      *logging.Logger
	Interval time.Duration
	Enabled  bool

	// Today returns the summary day. Replaced in tests.
	Today func() loan.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.Mutex
	last   *loan.DailySummary
}

// NewSummaryScheduler creates a new scheduler.
func NewSummaryScheduler(store loan.Store, publisher events.Publisher, logger *logging.Logger) *SummaryScheduler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &SummaryScheduler{
		Store:    store,
		Events:   publisher,
		Log:      logger.WithComponent(logging.ComponentScheduler),
		Interval: time.Hour,
		Enabled:  true,
		Today:    loan.Today,
	}
}

// Start begins the scheduler.
func (s *SummaryScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Interval <= 0 {
		s.Log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()

	s.Log.Info("started", "interval", s.Interval.String())
}

// Stop stops the scheduler and waits for a running summary to finish.
func (s *SummaryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Log.Info("stopped")
}

func (s *SummaryScheduler) run() {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.RunOnce(ctx)
		case <-s.stop:
			return
		}
	}
}

// RunOnce computes, logs and publishes today's summary.
func (s *SummaryScheduler) RunOnce(ctx context.Context) (loan.DailySummary, error) {
	b, err := s.Store.Load(ctx)
	if err != nil {
		s.Log.Failed(ctx, logging.OpDailySummary, err)
		return loan.DailySummary{}, err
	}

	summary := loan.Summarize(b.Clients, s.Today())
	s.lastMu.Lock()
	s.last = &summary
	s.lastMu.Unlock()

	s.Log.InfoContext(ctx, "daily summary",
		logging.FieldDate, summary.Date.String(),
		logging.FieldTotal, summary.TotalCollected.String(),
		logging.FieldCount, summary.PaymentCount,
		"loans_with_balance", summary.LoansWithBalance)

	if err := s.Events.Publish(ctx, events.DailySummary(summary)); err != nil {
		s.Log.Failed(ctx, logging.OpPublish, err, logging.FieldEvent, events.TypeDailySummary)
	}
	return summary, nil
}

// Last returns the most recent summary, if any has run.
func (s *SummaryScheduler) Last() (loan.DailySummary, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if s.last == nil {
		return loan.DailySummary{}, false
	}
	return *s.last, true
}
