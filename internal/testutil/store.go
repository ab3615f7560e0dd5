package testutil

import (
	"context"
	"sync"

	"github.com/hpcsched/kestrel/internal/kvs"
)

// MemStore is an in-memory kvs.Store for engine tests.
//
// Commit applies the whole transaction atomically under one lock, like
// the SQLite store, and can be told to reject the next commit.
type MemStore struct {
	mu      sync.Mutex
	logs    map[string][]byte
	commits int
	failErr error
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{logs: make(map[string][]byte)}
}

// FailNext makes the next Commit return err.
func (s *MemStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Commit applies every append in txn, or nothing on an injected failure.
func (s *MemStore) Commit(_ context.Context, txn *kvs.Txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		err := s.failErr
		s.failErr = nil
		return err
	}
	txn.Each(func(key string, data []byte) {
		s.logs[key] = append(s.logs[key], data...)
	})
	s.commits++
	return nil
}

// ReadLog returns the accumulated appends for key.
func (s *MemStore) ReadLog(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.logs[key]...), nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

// Commits returns the number of successful commits.
func (s *MemStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}
