package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dshills/orchestrator-core/core"
)

// MemoryStore is an in-memory EventStore. Designed for tests and for
// development runs where losing history on process exit is acceptable.
//
// Thread-safe for concurrent callers, but a single run is still expected
// to have a single writer (spec §5); AppendEvents enforces that with the
// expectedIndex check rather than a run-level lock.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string][]StoredEvent
	snapshots map[string]Snapshot
	emitted   map[string]map[int64]bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string][]StoredEvent),
		snapshots: make(map[string]Snapshot),
		emitted:   make(map[string]map[int64]bool),
	}
}

func (m *MemoryStore) AppendEvents(_ context.Context, runID string, expectedIndex int64, events []core.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.events[runID]
	if int64(len(existing)) != expectedIndex {
		return ErrEventIndexConflict
	}

	for i, e := range events {
		existing = append(existing, StoredEvent{
			Index:     expectedIndex + int64(i),
			RunID:     runID,
			Event:     e,
			CreatedAt: e.Timestamp,
		})
	}
	m.events[runID] = existing
	return nil
}

func (m *MemoryStore) LoadEvents(_ context.Context, runID string) ([]StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events, ok := m.events[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]StoredEvent, len(events))
	copy(out, events)
	return out, nil
}

func (m *MemoryStore) LoadEventsSince(_ context.Context, runID string, afterIndex int64) ([]StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events, ok := m.events[runID]
	if !ok {
		return nil, ErrNotFound
	}
	var out []StoredEvent
	for _, e := range events {
		if e.Index > afterIndex {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.RunID] = snap
	return nil
}

func (m *MemoryStore) LoadLatestSnapshot(_ context.Context, runID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[runID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemoryStore) PendingEvents(_ context.Context, limit int) ([]StoredEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []StoredEvent
	for runID, events := range m.events {
		seen := m.emitted[runID]
		for _, e := range events {
			if seen != nil && seen[e.Index] {
				continue
			}
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkEventsEmitted(_ context.Context, runID string, indices []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen, ok := m.emitted[runID]
	if !ok {
		seen = make(map[int64]bool)
		m.emitted[runID] = seen
	}
	for _, idx := range indices {
		seen[idx] = true
	}
	return nil
}

func (m *MemoryStore) ListRuns(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]string, 0, len(m.events))
	for runID := range m.events {
		runs = append(runs, runID)
	}
	return runs, nil
}

func (m *MemoryStore) Close() error { return nil }
