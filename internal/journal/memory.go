package journal

import (
	"sync"

	"github.com/google/uuid"

	"github.com/matchdesk/console/internal/model"
)

// MemoryStore is a journal with no durability. Used in tests and when the
// console runs with persistence disabled.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]model.MatchEvent
	order   []uuid.UUID
}

// NewMemory creates an empty in-memory journal.
func NewMemory() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]model.MatchEvent)}
}

func (s *MemoryStore) Init() error  { return nil }
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Append(ev model.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[ev.ClientID]; !exists {
		s.order = append(s.order, ev.ClientID)
	}
	s.entries[ev.ClientID] = ev
	return nil
}

func (s *MemoryStore) MarkConfirmed(clientID uuid.UUID, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := s.entries[clientID]; ok {
		ev.ServerID = serverID
		ev.Status = model.DeliveryConfirmed
		s.entries[clientID] = ev
	}
	return nil
}

func (s *MemoryStore) Delete(clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, clientID)
	for i, id := range s.order {
		if id == clientID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Unsent() ([]model.MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []model.MatchEvent
	for _, id := range s.order {
		if ev, ok := s.entries[id]; ok && ev.Status != model.DeliveryConfirmed {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (s *MemoryStore) UnsentCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ev := range s.entries {
		if ev.Status != model.DeliveryConfirmed {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[uuid.UUID]model.MatchEvent)
	s.order = nil
	return nil
}
