package repo

import "context"

// KVStore is the durable local key-value store.
// Used for session continuity; writes are best effort from the caller's point of view.
type KVStore interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value under key
	Set(ctx context.Context, key, value string) error

	// Remove deletes a key; removing a missing key is not an error
	Remove(ctx context.Context, key string) error

	Close() error
}
