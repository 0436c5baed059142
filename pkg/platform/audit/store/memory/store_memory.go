package memory

import (
	"context"
	"sync"

	audit "leasehold/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
	order  []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]audit.Event)
	s.order = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Domain] = append(s.events[event.Domain], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByDomain(_ context.Context, domain string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[domain]...), nil
}

// ListRecent returns the most recent events in append order, newest last.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.order)-limit, 0)
	return append([]audit.Event{}, s.order[start:]...), nil
}
