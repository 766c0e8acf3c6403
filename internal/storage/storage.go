// Package storage provides the persistent key/value slots the client keeps between runs
// (session token, live-broadcast flags).
package storage

import "context"

// Storage is a string key/value store. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
