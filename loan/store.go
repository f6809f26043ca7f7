/*
store.go - Record store interface

PURPOSE:
  Defines the boundary between the ledger and wherever the book lives.
  The ledger never reads or writes storage itself. A caller loads a
  snapshot, applies ledger operations to it, and persists the result.

KEY INTERFACES:
  Store:   Load the whole book, save the whole book
  TxStore: Run load -> mutate -> save as one atomic unit

ABSENT DATA:
  Load on a store that holds nothing yet (no file, no row, no key) returns
  an empty Book and a nil error. "Nothing saved yet" is a valid initial
  state, not a fault.

TRANSACTION BOUNDARY:
  Stores do no optimistic-concurrency checking of their own on Save. When
  more than one caller can write (the HTTP server), every
  find -> mutate -> persist sequence goes through Update, which uses
  WithTx when the store offers it.

IMPLEMENTATIONS:
  - loan/store/memory.go: In-memory, for tests and demos
  - store/jsonfile: A single JSON document on disk
  - store/sqlite: SQLite tables with an append-only payments table
  - store/redis: One Redis key, WATCH-based transactions

SEE ALSO:
  - encode.go: The persisted document layout
*/
package loan

import "context"

// =============================================================================
// STORE - Whole-book persistence
// =============================================================================

// Store loads and persists the full client collection.
type Store interface {
	// Load returns a snapshot the caller owns. Absent data yields an empty Book.
	Load(ctx context.Context) (*Book, error)

	// Save persists the snapshot.
	Save(ctx context.Context, b *Book) error
}

// TxStore runs a read-modify-persist sequence atomically.
type TxStore interface {
	Store

	// WithTx loads the book, calls fn and persists the book if fn returns nil.
	// If fn returns an error nothing is written.
	WithTx(ctx context.Context, fn func(b *Book) error) error
}

// Update applies fn to the current book and persists the result.
func Update(ctx context.Context, s Store, fn func(b *Book) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.WithTx(ctx, fn)
	}
	b, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return s.Save(ctx, b)
}
