// Package memory implements an in-memory store.Store with fault injection,
// for tests and the mock radio mode.
package memory

import (
	"sync"

	"github.com/shazow/wifiprov/store"
)

// Store is a map-backed store without batch support. PutErrors and
// GetErrors inject per-key failures.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte

	PutErrors map[string]error
	GetErrors map[string]error
	// Puts records every key written, in order.
	Puts []string
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		values:    make(map[string][]byte),
		PutErrors: make(map[string]error),
		GetErrors: make(map[string]error),
	}
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErrors[key]; err != nil {
		return nil, err
	}
	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.PutErrors[key]; err != nil {
		return err
	}
	s.Puts = append(s.Puts, key)
	s.values[key] = append([]byte{}, value...)
	return nil
}

func (s *Store) Has(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.GetErrors[key]; err != nil {
		return false, err
	}
	_, ok := s.values[key]
	return ok, nil
}

// Atomic wraps a Store so that it also implements store.Batcher.
type Atomic struct {
	*Store
}

var _ store.Batcher = Atomic{}

// NewAtomic returns an empty store with batch support.
func NewAtomic() Atomic {
	return Atomic{Store: New()}
}

// PutBatch applies all entries, or none if any key has an injected error.
func (a Atomic) PutBatch(entries []store.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range entries {
		if err := a.PutErrors[e.Key]; err != nil {
			return err
		}
	}
	for _, e := range entries {
		a.Puts = append(a.Puts, e.Key)
		a.values[e.Key] = append([]byte{}, e.Value...)
	}
	return nil
}
