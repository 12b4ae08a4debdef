package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/dshills/orchestrator-core/core"
)

// MySQLStore is a MySQL-backed EventStore, for deployments that already
// run a MySQL instance and want the orchestrator's event log alongside
// their other application tables instead of a separate SQLite file.
//
// Schema matches SQLiteStore's (run_events, run_snapshots) with MySQL's
// upsert syntax swapped in for SQLite's.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a connection pool against dsn (e.g.
// "user:pass@tcp(127.0.0.1:3306)/orchestrator?parseTime=true") and
// migrates the schema. parseTime=true is required so TIMESTAMP columns
// scan directly into time.Time.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS run_events (
			run_id VARCHAR(191) NOT NULL,
			idx BIGINT NOT NULL,
			kind VARCHAR(64) NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL,
			emitted_at TIMESTAMP(6) NULL,
			PRIMARY KEY (run_id, idx),
			INDEX idx_run_events_pending (emitted_at, created_at)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS run_snapshots (
			run_id VARCHAR(191) NOT NULL PRIMARY KEY,
			at_index BIGINT NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP(6) NOT NULL
		) ENGINE=InnoDB`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *MySQLStore) AppendEvents(ctx context.Context, runID string, expectedIndex int64, events []core.Event) error {
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

func (s *MySQLStore) LoadEvents(ctx context.Context, runID string) ([]StoredEvent, error) {
	return s.queryEvents(ctx, "SELECT idx, payload, created_at FROM run_events WHERE run_id = ? ORDER BY idx ASC", runID)
}

func (s *MySQLStore) LoadEventsSince(ctx context.Context, runID string, afterIndex int64) ([]StoredEvent, error) {
	return s.queryEvents(ctx,
		"SELECT idx, payload, created_at FROM run_events WHERE run_id = ? AND idx > ? ORDER BY idx ASC",
		runID, afterIndex)
}

func (s *MySQLStore) queryEvents(ctx context.Context, query string, args ...any) ([]StoredEvent, error) {
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

func (s *MySQLStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_snapshots (run_id, at_index, state, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE at_index = VALUES(at_index), state = VALUES(state), created_at = VALUES(created_at)
	`, snap.RunID, snap.AtIndex, string(payload), snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadLatestSnapshot(ctx context.Context, runID string) (Snapshot, error) {
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

func (s *MySQLStore) PendingEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
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

func (s *MySQLStore) MarkEventsEmitted(ctx context.Context, runID string, indices []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, idx := range indices {
		if _, err := tx.ExecContext(ctx,
			"UPDATE run_events SET emitted_at = CURRENT_TIMESTAMP(6) WHERE run_id = ? AND idx = ?",
			runID, idx); err != nil {
			return fmt.Errorf("mark emitted: %w", err)
		}
	}
	return tx.Commit()
}

func (s *MySQLStore) ListRuns(ctx context.Context) ([]string, error) {
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

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
