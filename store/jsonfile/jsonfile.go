/*
Package jsonfile stores the book as one JSON document on disk.

PURPOSE:
  The simplest durable backend: a single file holding every client, loan
  and payment (layout in loan/encode.go). Suited to one operator running
  the CLI against a file they can back up or inspect by hand.

ABSENT FILE:
  A missing file loads as an empty book. The file is created on the first
  Save.

WRITES:
  Save writes to a temporary file in the same directory and renames it over
  the target, so a crash leaves either the old or the new document, never a
  truncated one.

CONCURRENCY:
  One Store per file per process. WithTx holds the store's mutex across
  load -> fn -> save. Other processes writing the same file are not
  coordinated.
*/
package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/loan-ledger/loan"
)

// Store implements loan.TxStore over a JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

func (s *Store) Load(_ context.Context) (*loan.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) Save(_ context.Context, b *loan.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(b)
}

// WithTx runs load -> fn -> save under the store's lock. Nothing is written
// if fn fails.
func (s *Store) WithTx(_ context.Context, fn func(*loan.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return s.save(b)
}

func (s *Store) load() (*loan.Book, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &loan.Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	b, err := loan.DecodeBook(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return b, nil
}

func (s *Store) save(b *loan.Book) (err error) {
	data, err := loan.MarshalBook(b)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

var _ loan.TxStore = (*Store)(nil)
