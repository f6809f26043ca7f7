/*
Package redis keeps the book as one JSON document under a Redis key.

PURPOSE:
  A shared backend for several server instances. The document layout is
  the same as the JSON file backend (loan/encode.go).

TRANSACTIONS:
  WithTx is optimistic: it WATCHes the key, reads and mutates the book, and
  writes it back in MULTI/EXEC. If another writer touched the key in
  between, EXEC fails and the whole sequence is retried from a fresh read,
  up to maxRetries times. fn can therefore run more than once and must only
  touch the book it is given.
*/
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/warp/loan-ledger/loan"
)

const maxRetries = 10

// ErrContention is returned when WithTx lost every optimistic retry.
var ErrContention = errors.New("redis: too much write contention on book key")

// Store implements loan.TxStore on a Redis key.
type Store struct {
	client *redis.Client
	key    string
}

func New(addr, key string) *Store {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr}), key)
}

func NewWithClient(client *redis.Client, key string) *Store {
	return &Store{client: client, key: key}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Load(ctx context.Context) (*loan.Book, error) {
	return s.read(ctx, s.client)
}

func (s *Store) Save(ctx context.Context, b *loan.Book) error {
	data, err := loan.MarshalBook(b)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(*loan.Book) error) error {
	txf := func(tx *redis.Tx) error {
		b, err := s.read(ctx, tx)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		data, err := loan.MarshalBook(b)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) read(ctx context.Context, c getter) (*loan.Book, error) {
	data, err := c.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return &loan.Book{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return loan.UnmarshalBook(data)
}

var _ loan.TxStore = (*Store)(nil)
