// Package store provides an in-memory loan.Store.
package store

import (
	"context"
	"sync"

	"github.com/warp/loan-ledger/loan"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the book in process memory. Load and Save copy, so callers
// never share slices with the stored state.
type Memory struct {
	mu   sync.RWMutex
	book *loan.Book
}

func NewMemory() *Memory {
	return &Memory{book: &loan.Book{}}
}

// NewMemoryFrom seeds the store with a copy of b.
func NewMemoryFrom(b *loan.Book) *Memory {
	return &Memory{book: b.Clone()}
}

func (m *Memory) Load(_ context.Context) (*loan.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.Clone(), nil
}

func (m *Memory) Save(_ context.Context, b *loan.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.book = b.Clone()
	return nil
}

// WithTx runs fn on a working copy and commits it only if fn succeeds.
// The write lock is held for the whole sequence.
func (m *Memory) WithTx(_ context.Context, fn func(*loan.Book) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.book.Clone()
	if err := fn(working); err != nil {
		// Rollback: the stored book was never touched.
		return err
	}
	m.book = working
	return nil
}

var _ loan.TxStore = (*Memory)(nil)
