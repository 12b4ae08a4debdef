package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/orchestrator-core/core"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file SQLite-backed EventStore.
//
// Designed for local runs and tests that want real persistence without a
// database server: zero setup, WAL mode for concurrent reads, and a
// busy-timeout tuned so a snapshot write never collides with the append
// path mid-run.
//
// Schema:
//   - run_events: the append-only event log, one row per (run_id, idx)
//   - run_snapshots: latest-wins materialized State per run
type SQLiteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewSQLiteStore opens (or creates) the database at path and migrates its
// schema. Pass ":memory:" for an ephemeral database useful in tests that
// still want to exercise real SQL, as opposed to MemoryStore's plain maps.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // sqlite allows exactly one writer
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS run_events (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			emitted_at TIMESTAMP,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_pending ON run_events(emitted_at, created_at)`,
		`CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id TEXT NOT NULL PRIMARY KEY,
			at_index INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) AppendEvents(ctx context.Context, runID string, expectedIndex int64, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_events WHERE run_id = ?", runID).Scan(&count); err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if count != expectedIndex {
		return ErrEventIndexConflict
	}

	for i, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_events (run_id, idx, kind, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
			runID, expectedIndex+int64(i), string(e.Kind), string(payload), e.Timestamp)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadEvents(ctx context.Context, runID string) ([]StoredEvent, error) {
	return s.queryEvents(ctx, "SELECT idx, payload, created_at FROM run_events WHERE run_id = ? ORDER BY idx ASC", runID)
}

func (s *SQLiteStore) LoadEventsSince(ctx context.Context, runID string, afterIndex int64) ([]StoredEvent, error) {
	return s.queryEvents(ctx,
		"SELECT idx, payload, created_at FROM run_events WHERE run_id = ? AND idx > ? ORDER BY idx ASC",
		runID, afterIndex)
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runID, _ := args[0].(string)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var idx int64
		var payload string
		var createdAt time.Time
		if err := rows.Scan(&idx, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e core.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, StoredEvent{Index: idx, RunID: runID, Event: e, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_snapshots (run_id, at_index, state, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET at_index = excluded.at_index, state = excluded.state, created_at = excluded.created_at
	`, snap.RunID, snap.AtIndex, string(payload), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadLatestSnapshot(ctx context.Context, runID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var atIndex int64
	var payload string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT at_index, state, created_at FROM run_snapshots WHERE run_id = ?", runID,
	).Scan(&atIndex, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var st core.State
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return Snapshot{RunID: runID, AtIndex: atIndex, State: st, CreatedAt: createdAt}, nil
}

func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, idx, payload, created_at FROM run_events WHERE emitted_at IS NULL ORDER BY created_at ASC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var runID, payload string
		var idx int64
		var createdAt time.Time
		if err := rows.Scan(&runID, &idx, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending event: %w", err)
		}
		var e core.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		out = append(out, StoredEvent{Index: idx, RunID: runID, Event: e, CreatedAt: createdAt})
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, runID string, indices []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, idx := range indices {
		if _, err := tx.ExecContext(ctx,
			"UPDATE run_events SET emitted_at = CURRENT_TIMESTAMP WHERE run_id = ? AND idx = ?",
			runID, idx); err != nil {
			return fmt.Errorf("mark emitted: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT run_id FROM run_events")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, err
		}
		runs = append(runs, runID)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
