package recordstore

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Used by tests and ephemeral
// runs; semantics match SQLiteStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]Record),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Record

	for _, rec := range s.collections[collection] {
		if userID != "" && rec["user_id"] != userID {
			continue
		}

		result = append(result, maps.Clone(rec))
	}

	return result, nil
}

func (s *MemoryStore) Append(_ context.Context, collection string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := maps.Clone(rec)
	if stored["id"] == "" {
		stored["id"] = uuid.NewString()
	}

	s.collections[collection] = append(s.collections[collection], stored)

	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection string, ref Ref, partial Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx int
	if _, err := fmt.Sscanf(string(ref), "%d", &idx); err != nil {
		return ErrNotFound
	}

	records := s.collections[collection]
	if idx < 0 || idx >= len(records) {
		return ErrNotFound
	}

	for key, value := range partial {
		records[idx][key] = value
	}

	return nil
}

func (s *MemoryStore) FindRef(_ context.Context, collection, userID, id string) (Ref, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, rec := range s.collections[collection] {
		if userID != "" && rec["user_id"] != userID {
			continue
		}

		if matches(rec, id) {
			return Ref(fmt.Sprint(i)), true, nil
		}
	}

	return "", false, nil
}
