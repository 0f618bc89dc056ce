package store

import (
	"context"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
)

// MemoryStore is an in-process Store used by tests and the memory backend.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Record)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][key]
	if !ok {
		return nil, notFound(collection, key)
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection string, rec Record) (int64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Record)
		s.collections[collection] = coll
	}

	current, exists := coll[rec.Key]
	switch {
	case rec.Version == 0 && exists:
		return 0, alreadyExists(collection, rec.Key)
	case rec.Version != 0 && !exists:
		return 0, notFound(collection, rec.Key)
	case rec.Version != 0 && current.Version != rec.Version:
		return 0, stale(collection, rec.Key, rec.Version)
	}

	stored := *cloneRecord(rec)
	stored.Version = rec.Version + 1
	coll[rec.Key] = stored
	return stored.Version, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, field, value string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.collections[collection] {
		if gjson.GetBytes(rec.Data, gjsonEscape(field)).String() == value {
			out = append(out, *cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func cloneRecord(rec Record) *Record {
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return &Record{Key: rec.Key, Data: data, Version: rec.Version}
}
