// Package store defines the persistent key/value contract used for saved
// network credentials.
package store

import "errors"

// ErrNotFound is returned by Get for a key that was never written.
var ErrNotFound = errors.New("key not found")

// Store is a persistent key/value store that survives power loss.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error
	// Has reports whether key has a value.
	Has(key string) (bool, error)
}

// Entry is a single key/value pair written as part of a batch.
type Entry struct {
	Key   string
	Value []byte
}

// Batcher is implemented by stores that can write several keys atomically.
// Either every entry is stored or none are.
type Batcher interface {
	PutBatch(entries []Entry) error
}
