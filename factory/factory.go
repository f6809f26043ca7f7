/*
Package factory builds the configured store and event publisher.

PURPOSE:
  Both binaries (cmd/server, cmd/loanbook) pick their backends from the
  same Config. The factory turns DATA_BACKEND and KAFKA_BROKERS into a
  loan.Store and an events.Publisher, and hands back a single Close that
  releases whatever was opened.

BACKENDS:
  memory   loan/store.Memory        (lost on exit; demos and tests)
  json     store/jsonfile.Store     (database.json document)
  sqlite   store/sqlite.Store       (clients/loans/payments tables)
  redis    store/redis.Store        (one key, optimistic WATCH)

EVENTS:
  KAFKA_BROKERS set    events/kafka.Publisher
  KAFKA_BROKERS empty  events.Nop

USAGE:
  res, err := factory.Open(ctx, cfg, logger)
  if err != nil { ... }
  defer res.Close()

SEE ALSO:
  - config/config.go: Environment keys
*/
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/loan-ledger/config"
	"github.com/warp/loan-ledger/events"
	"github.com/warp/loan-ledger/events/kafka"
	"github.com/warp/loan-ledger/loan"
	"github.com/warp/loan-ledger/loan/store"
	"github.com/warp/loan-ledger/logging"
	"github.com/warp/loan-ledger/store/jsonfile"
	"github.com/warp/loan-ledger/store/redis"
	"github.com/warp/loan-ledger/store/sqlite"
)

// Result holds what Open created.
type Result struct {
	Store     loan.Store
	Publisher events.Publisher

	closers []func() error
}

// Close releases the store and publisher. It returns every error joined.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open creates the store and publisher described by cfg. cfg is expected to
// be validated.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent(logging.ComponentStore)

	res := &Result{}
	st, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.Store = st
	if closer != nil {
		res.closers = append(res.closers, closer)
	}
	logger.Info("store opened", logging.FieldBackend, cfg.DataBackend)

	if len(cfg.KafkaBrokers) == 0 {
		res.Publisher = events.Nop{}
		return res, nil
	}
	pub := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	res.Publisher = pub
	res.closers = append(res.closers, pub.Close)
	logger.Info("publishing events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	return res, nil
}

// OpenStore creates the store for cfg.DataBackend. The returned closer may
// be nil.
func OpenStore(ctx context.Context, cfg *config.Config) (loan.Store, func() error, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil, nil
	case config.BackendJSON:
		return jsonfile.New(cfg.JSONPath), nil, nil
	case config.BackendSQLite:
		st, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		return st, st.Close, nil
	case config.BackendRedis:
		st := redis.New(cfg.RedisAddr, cfg.RedisKey)
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
	}
}
