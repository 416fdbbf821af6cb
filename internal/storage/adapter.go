// Package storage persists pipeline artifacts under "{doc_id}/..." keys on
// the local filesystem, S3-compatible object storage, or a remote KV
// service.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("storage: not found")

// Adapter is a key/value artifact store. Keys use forward slashes.
type Adapter interface {
	// Put stores data at key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the data at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key holds data.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// DeletePrefix removes every key under prefix.
func DeletePrefix(ctx context.Context, a Adapter, prefix string) (int, error) {
	keys, err := a.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if err := a.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
