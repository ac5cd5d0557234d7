package inmem

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-console/core"
)

// Store keeps the blobs in process memory; nothing survives a restart.
type Store struct {
	sync.RWMutex
	table map[string][]byte
}

var _ core.Storage = (*Store)(nil)

func New() *Store {
	return &Store{table: make(map[string][]byte)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	data, ok := s.table[key]
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.Lock()
	defer s.Unlock()

	s.table[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.Lock()
	defer s.Unlock()

	delete(s.table, key)
	return nil
}

// Keys lists the stored keys, for tests & debugging.
func (s *Store) Keys() []string {
	s.RLock()
	defer s.RUnlock()

	keys := make([]string, 0, len(s.table))
	for k := range s.table {
		keys = append(keys, k)
	}
	return keys
}
