// Package kv provides the blob persistence surface the position store writes
// its snapshot to. Every backend stores opaque byte values under string keys;
// writes replace the whole value.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is a synchronous key-value blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}
