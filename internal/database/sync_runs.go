package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncRun is the audit record of one sync invocation
type SyncRun struct {
	RunID         string
	StartedAt     int64
	FinishedAt    *int64
	MembersSeen   int
	MembersFailed int
	Transitions   int
	Error         *string
}

// CreateSyncRun inserts a new in-progress sync run
func (db *DB) CreateSyncRun(runID string) error {
	_, err := db.conn.Exec(`
		INSERT INTO sync_runs (run_id, started_at)
		VALUES (?, ?)
	`, runID, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// FinishSyncRun records the outcome of a sync run
func (db *DB) FinishSyncRun(runID string, membersSeen, membersFailed, transitions int, runErr *string) error {
	result, err := db.conn.Exec(`
		UPDATE sync_runs
		SET finished_at = ?, members_seen = ?, members_failed = ?, transitions = ?, error = ?
		WHERE run_id = ?
	`, time.Now().Unix(), membersSeen, membersFailed, transitions, runErr, runID)

	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sync run not found")
	}

	return nil
}

// GetSyncRun retrieves a sync run by ID
func (db *DB) GetSyncRun(runID string) (*SyncRun, error) {
	var r SyncRun
	err := db.conn.QueryRow(`
		SELECT run_id, started_at, finished_at, members_seen, members_failed, transitions, error
		FROM sync_runs WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.MembersSeen, &r.MembersFailed, &r.Transitions, &r.Error)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return &r, nil
}

// ListSyncRuns returns the most recent sync runs, newest first
func (db *DB) ListSyncRuns(limit int) ([]*SyncRun, error) {
	query := `
		SELECT run_id, started_at, finished_at, members_seen, members_failed, transitions, error
		FROM sync_runs
		ORDER BY started_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		var r SyncRun
		err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.MembersSeen, &r.MembersFailed, &r.Transitions, &r.Error)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync runs: %w", err)
	}

	return runs, nil
}
