package lock

import (
	"slices"
	"sync"
)

// MemoryStore is a [Store] for a single process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return slices.Clone(v), ok, nil
}

func (s *MemoryStore) Update(key string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.values[key]
	next, write, err := fn(slices.Clone(current), ok)
	if err != nil {
		return err
	}
	if write {
		s.values[key] = slices.Clone(next)
	}
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}
