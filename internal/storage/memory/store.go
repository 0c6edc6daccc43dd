package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/xenking/minishop/internal/domain/account"
)

var _ account.Store = (*Store)(nil)

// Store keeps snapshots in memory.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns a copy of the data saved under key.
func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, account.ErrNoSnapshot
	}
	return bytes.Clone(v), nil
}

// Save stores a copy of data under key.
func (s *Store) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = bytes.Clone(data)
	return nil
}
