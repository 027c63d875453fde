package notify

import (
	"context"
	"sync"

	id "auditflow/pkg/domain"
)

// MemoryStore keeps notification events in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ByRecipient returns events for a recipient in creation order. Test helper.
func (s *MemoryStore) ByRecipient(userID id.UserID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.RecipientID == userID {
			out = append(out, e)
		}
	}
	return out
}

// All returns every event. Test helper.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
