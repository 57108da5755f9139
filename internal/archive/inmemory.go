package archive

import (
	"context"
	"sync"
)

const inMemoryCap = 1000

// InMemoryStore keeps entries in a bounded slice. It backs dev mode
// when no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveEntry(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if len(s.entries) > inMemoryCap {
		s.entries = s.entries[len(s.entries)-inMemoryCap:]
	}
	return nil
}

func (s *InMemoryStore) RecentEntries(_ context.Context, owner string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for _, e := range s.entries {
		if e.Owner == owner {
			matched = append(matched, e)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	out := make([]Entry, len(matched))
	copy(out, matched)
	return out, nil
}

func (s *InMemoryStore) Close() {}
