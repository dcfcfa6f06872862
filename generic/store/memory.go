// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory journal (for testing/dev and CLI runs)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	entries     map[string][]generic.Entry
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string][]generic.Entry),
		idempotency: make(map[string]bool),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e generic.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(e)
	return nil
}

// AppendBatch adds multiple entries atomically.
func (m *Memory) AppendBatch(_ context.Context, es []generic.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all idempotency keys first (atomic check)
	seen := make(map[string]bool, len(es))
	for _, e := range es {
		if e.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[e.IdempotencyKey] || seen[e.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
	}

	for _, e := range es {
		m.appendLocked(e)
	}
	return nil
}

func (m *Memory) appendLocked(e generic.Entry) {
	es := m.entries[e.StreamID]

	// Keep the stream ordered by EffectiveAt; equal dates keep insertion order.
	i := sort.Search(len(es), func(i int) bool {
		return es[i].EffectiveAt.After(e.EffectiveAt)
	})

	es = append(es, generic.Entry{})
	copy(es[i+1:], es[i:])
	es[i] = e
	m.entries[e.StreamID] = es

	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, streamID string) ([]generic.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Entry, len(m.entries[streamID]))
	copy(result, m.entries[streamID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, streamID string, from, to generic.TimePoint) ([]generic.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Entry
	for _, e := range m.entries[streamID] {
		if from.BeforeOrEqual(e.EffectiveAt) && e.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
