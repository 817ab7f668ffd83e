package memory

import (
	"context"
	"sync"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/internal/repository/database"
)

var _ database.KeyValueStore = (*KeyValueStore)(nil)

// KeyValueStore keeps values in process memory. It backs the zone registry
// when no Postgres DSN is configured.
type KeyValueStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{data: make(map[string][]byte)}
}

func (s *KeyValueStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *KeyValueStore) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}
