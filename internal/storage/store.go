// Package storage holds uploaded source documents so the pipeline can be
// re-run from the original bytes.
package storage

import "context"

// Store is a key/value blob store. Keys are document ids.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns domain.ErrSourceNotFound when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
