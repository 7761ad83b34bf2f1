// Package corestore is a SQLite archive of finished corectl.TaskResults,
// backing `agentcore history`. It is not a checkpoint or replay store: it
// holds one row per TaskID, and recording the same TaskID again replaces
// that row.
package corestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentcore/internal/corectl"

	_ "modernc.org/sqlite"
)

// Store archives terminal task results to a SQLite file.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates (if needed) the directory containing path and opens the
// archive database there, creating its schema on first use.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("corestore: create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("corestore: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS task_results (
		task_id     TEXT PRIMARY KEY,
		context_id  TEXT NOT NULL,
		status      TEXT NOT NULL,
		intent      TEXT NOT NULL,
		start_url   TEXT NOT NULL,
		final_url   TEXT NOT NULL,
		steps_taken INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_task_results_status ON task_results(status);
	CREATE INDEX IF NOT EXISTS idx_task_results_recorded_at ON task_results(recorded_at);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("corestore: create schema: %w", err)
	}
	return nil
}

// Record archives one finished task result. Calling Record twice for the
// same TaskID overwrites the prior archive entry rather than erroring,
// since a host process may re-archive a result after enriching it (e.g.
// once corereason has derived escalation facts for it).
func (s *Store) Record(result corectl.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("corestore: marshal task result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO task_results (task_id, context_id, status, intent, start_url, final_url, steps_taken, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(task_id) DO UPDATE SET
		   context_id  = excluded.context_id,
		   status      = excluded.status,
		   intent      = excluded.intent,
		   start_url   = excluded.start_url,
		   final_url   = excluded.final_url,
		   steps_taken = excluded.steps_taken,
		   result_json = excluded.result_json`,
		result.TaskID, result.ContextID, string(result.Status), result.Intent,
		result.StartURL, result.FinalURL, result.StepsTaken, string(payload),
	)
	if err != nil {
		return fmt.Errorf("corestore: insert task result: %w", err)
	}
	return nil
}

// Summary is one row of agentcore history's listing, cheap to scan without
// decoding every archived result's full JSON payload.
type Summary struct {
	TaskID     string
	ContextID  string
	Status     corectl.ResultStatus
	Intent     string
	StartURL   string
	FinalURL   string
	StepsTaken int
	RecordedAt time.Time
}

// Get returns one archived task result by ID, decoded in full.
func (s *Store) Get(taskID string) (*corectl.TaskResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow(`SELECT result_json FROM task_results WHERE task_id = ?`, taskID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("corestore: task %s not found", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("corestore: query task %s: %w", taskID, err)
	}

	var result corectl.TaskResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("corestore: decode task %s: %w", taskID, err)
	}
	return &result, nil
}

// List returns the most recently recorded task summaries, newest first,
// optionally filtered by status. limit <= 0 means no limit.
func (s *Store) List(status corectl.ResultStatus, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT task_id, context_id, status, intent, start_url, final_url, steps_taken, recorded_at FROM task_results`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY recorded_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("corestore: list task results: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var row Summary
		var status string
		if err := rows.Scan(&row.TaskID, &row.ContextID, &status, &row.Intent, &row.StartURL, &row.FinalURL, &row.StepsTaken, &row.RecordedAt); err != nil {
			return nil, fmt.Errorf("corestore: scan task result: %w", err)
		}
		row.Status = corectl.ResultStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
