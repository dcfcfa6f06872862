package coverage

import (
	"context"
	"sort"
	"sync"
)

// MemorySessionStore keeps sessions in memory. Used by tests and by the
// reconcile command.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[RentalID]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[RentalID]*Session)}
}

func (m *MemorySessionStore) SaveSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Rental.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) LoadSession(_ context.Context, id RentalID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrRentalNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) ListRentals(_ context.Context) ([]RentalPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RentalPeriod, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Rental.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
