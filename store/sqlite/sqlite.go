/*
Package sqlite provides a SQLite-backed loan.Store.

PURPOSE:
  Persists the book as three tables instead of one document, so the
  payment ledger can be queried and audited with plain SQL. The whole
  book is still loaded and saved as a unit, which is what loan.Store asks.

APPEND-ONLY ENFORCEMENT:
  - Save only ever INSERTs; rows already present (by id) are left alone
  - Triggers abort any UPDATE on payments and loans
  - No DELETE statements outside Reset (demo/test only)
  - Corrections are reversal rows referencing the original payment

KEY TABLES:
  clients:  One row per borrower. Unique index on lower(name)
  loans:    Principal, term and start date. position is the loan index
  payments: Ledger entries in seq order. reverses points at the offset entry

MIGRATIONS:
  Versioned SQL files under migrations/, embedded into the binary and
  applied with golang-migrate on New().

CONCURRENCY:
  A single connection (SQLite has one writer anyway) plus a RWMutex.
  WithTx runs load -> fn -> save inside one SQL transaction.

USAGE:
  store, err := sqlite.New("./data/loanledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - loan/store.go: Store and TxStore interfaces
  - loan/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-ledger/loan"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements loan.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close would close db as well; only the source is released here.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// STORE (loan.Store interface)
// =============================================================================

// Load reads the full book. An empty database yields an empty book.
func (s *Store) Load(ctx context.Context) (*loan.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadBook(ctx, s.db)
}

// Save inserts every client, loan and payment not yet stored.
func (s *Store) Save(ctx context.Context, b *loan.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveBook(ctx, sqlTx, b); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// TRANSACTIONAL STORE (loan.TxStore interface)
// =============================================================================

// WithTx loads, mutates and saves the book inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(b *loan.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	b, err := loadBook(ctx, sqlTx)
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	if err := saveBook(ctx, sqlTx, b); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// LOAD
// =============================================================================

func loadBook(ctx context.Context, q queryer) (*loan.Book, error) {
	b := &loan.Book{}
	clients := make(map[loan.ClientID]*loan.Client)

	rows, err := q.QueryContext(ctx, `SELECT id, name, phone FROM clients ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	for rows.Next() {
		c := &loan.Client{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients[c.ID] = c
		b.Clients = append(b.Clients, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	loans := make(map[loan.LoanID]*loan.Loan)

	rows, err = q.QueryContext(ctx, `
		SELECT id, client_id, principal, term_weeks, start_date
		FROM loans ORDER BY client_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	for rows.Next() {
		l := &loan.Loan{}
		var (
			clientID            loan.ClientID
			principal, startStr string
		)
		if err := rows.Scan(&l.ID, &clientID, &principal, &l.TermWeeks, &startStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		c, ok := clients[clientID]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("loan %s references unknown client %s", l.ID, clientID)
		}
		if l.Principal, err = decimal.NewFromString(principal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("loan %s: %w", l.ID, &loan.ValidationError{Field: "principal", Value: principal, Err: loan.ErrInvalidAmount})
		}
		if l.StartDate, err = loan.ParseDate(startStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("loan %s: %w", l.ID, err)
		}
		loans[l.ID] = l
		c.Loans = append(c.Loans, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, loan_id, amount, date, COALESCE(reverses, ''), note
		FROM payments ORDER BY loan_id, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p               loan.Payment
			loanID          loan.LoanID
			amount, dateStr string
		)
		if err := rows.Scan(&p.ID, &loanID, &amount, &dateStr, &p.Reverses, &p.Note); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		l, ok := loans[loanID]
		if !ok {
			return nil, fmt.Errorf("payment %s references unknown loan %s", p.ID, loanID)
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, &loan.ValidationError{Field: "amount", Value: amount, Err: loan.ErrInvalidAmount})
		}
		if p.Date, err = loan.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("payment %s: %w", p.ID, err)
		}
		l.Payments = append(l.Payments, p)
	}
	return b, rows.Err()
}

// =============================================================================
// SAVE
// =============================================================================

func saveBook(ctx context.Context, q queryer, b *loan.Book) error {
	now := time.Now().UTC().Format(time.RFC3339)

	for ci, c := range b.Clients {
		_, err := q.ExecContext(ctx, `
			INSERT INTO clients (id, position, name, phone, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			c.ID, ci, c.Name, c.Phone, now)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &loan.DuplicateClientError{Name: c.Name}
			}
			return fmt.Errorf("failed to save client %q: %w", c.Name, err)
		}

		for li, l := range c.Loans {
			_, err := q.ExecContext(ctx, `
				INSERT INTO loans (id, client_id, position, principal, term_weeks, start_date, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`,
				l.ID, c.ID, li, l.Principal.String(), l.TermWeeks, l.StartDate.String(), now)
			if err != nil {
				return fmt.Errorf("failed to save loan %d of %q: %w", li, c.Name, err)
			}

			for pi, p := range l.Payments {
				_, err := q.ExecContext(ctx, `
					INSERT INTO payments (id, loan_id, seq, amount, date, reverses, note, created_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT(id) DO NOTHING`,
					p.ID, l.ID, pi, p.Amount.String(), p.Date.String(), nullString(string(p.Reverses)), p.Note, now)
				if err != nil {
					if isUniqueConstraintError(err) {
						return fmt.Errorf("payment %s: %w", p.Reverses, loan.ErrAlreadyReversed)
					}
					return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
				}
			}
		}
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios and tests).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payments", "loans", "clients"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// PaymentsOn returns the number of ledger entries dated on day, straight
// from the payments table.
func (s *Store) PaymentsOn(ctx context.Context, day loan.Date) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments WHERE date = ?`, day.String()).Scan(&n)
	return n, err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ loan.TxStore = (*Store)(nil)
