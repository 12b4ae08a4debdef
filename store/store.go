// Package store provides persistence for the orchestrator's event log.
//
// A run's canonical state is never stored directly: it is always the fold
// of every persisted Event over the initial State (core.Replay). Stores
// only need to append events durably, hand them back in order, and
// optionally keep a snapshot so replay doesn't have to start from event
// zero on a long run.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/orchestrator-core/core"
)

// ErrNotFound is returned when a requested run or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventIndexConflict is returned by AppendEvents when the caller's
// expected event count doesn't match what the store already holds,
// signaling a concurrent writer raced ahead (spec §5: single-writer
// assumption violated).
var ErrEventIndexConflict = errors.New("event index conflict")

// StoredEvent pairs a core.Event with its position in the run's append-only
// log. Index is 0-based and dense: replaying events[0:Index+1] in order
// reproduces the state after that event was applied.
type StoredEvent struct {
	Index     int64
	RunID     string
	Event     core.Event
	CreatedAt time.Time
}

// Snapshot is a materialized State at a known event index, letting Resume
// skip replaying the whole log (spec §4.5: "snapshot every N events").
type Snapshot struct {
	RunID      string
	AtIndex    int64
	State      core.State
	CreatedAt  time.Time
}

// EventStore is the persistence contract the orchestrator depends on. It
// covers the append-only log, snapshotting, and a transactional outbox for
// reliable telemetry delivery (spec §4.5, §6).
type EventStore interface {
	// AppendEvents persists events in order, starting at expectedIndex
	// (the number of events already stored for runID). Returns
	// ErrEventIndexConflict if expectedIndex doesn't match the store's
	// current count, so callers can detect a lost race without a
	// database-level lock held across the whole decide/evolve cycle.
	AppendEvents(ctx context.Context, runID string, expectedIndex int64, events []core.Event) error

	// LoadEvents returns every event persisted for runID, in order.
	// Returns ErrNotFound if runID has no events at all.
	LoadEvents(ctx context.Context, runID string) ([]StoredEvent, error)

	// LoadEventsSince returns events with Index > afterIndex, in order.
	// Used together with a snapshot to resume without a full replay.
	LoadEventsSince(ctx context.Context, runID string, afterIndex int64) ([]StoredEvent, error)

	// SaveSnapshot stores (or replaces) the snapshot for runID.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadLatestSnapshot returns the most recent snapshot for runID.
	// Returns ErrNotFound if no snapshot has ever been taken.
	LoadLatestSnapshot(ctx context.Context, runID string) (Snapshot, error)

	// PendingEvents returns up to limit events not yet marked emitted,
	// oldest first, across all runs. Implements the transactional outbox
	// pattern: events are durable before telemetry ever sees them, so a
	// crashed emitter can resume without losing or duplicating events.
	PendingEvents(ctx context.Context, limit int) ([]StoredEvent, error)

	// MarkEventsEmitted records that the given (runID, index) pairs were
	// successfully delivered to telemetry and should not be returned by
	// PendingEvents again.
	MarkEventsEmitted(ctx context.Context, runID string, indices []int64) error

	// ListRuns returns every run ID the store currently knows about.
	// Used by resumption tooling to find interrupted runs at startup.
	ListRuns(ctx context.Context) ([]string, error)

	// Close releases any resources (connections, file handles) held by
	// the store.
	Close() error
}
