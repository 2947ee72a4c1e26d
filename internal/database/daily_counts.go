package database

import (
	"fmt"
	"time"
)

// DailyClientCount is a per-day snapshot of the client-base size
type DailyClientCount struct {
	Day         string // ISO date
	ClientCount int
	RecordedAt  int64
}

// RegisterDailyClientCount records today's client-base size, overwriting an
// earlier snapshot taken on the same day
func (db *DB) RegisterDailyClientCount(count int) error {
	now := time.Now()

	_, err := db.conn.Exec(`
		INSERT INTO daily_client_counts (day, client_count, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			client_count = excluded.client_count,
			recorded_at = excluded.recorded_at
	`, now.Format("2006-01-02"), count, now.Unix())

	if err != nil {
		return fmt.Errorf("failed to register daily client count: %w", err)
	}
	return nil
}

// ListDailyClientCounts returns snapshots ordered by day ascending
func (db *DB) ListDailyClientCounts() ([]*DailyClientCount, error) {
	rows, err := db.conn.Query(`
		SELECT day, client_count, recorded_at
		FROM daily_client_counts
		ORDER BY day
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily client counts: %w", err)
	}
	defer rows.Close()

	var counts []*DailyClientCount
	for rows.Next() {
		var c DailyClientCount
		if err := rows.Scan(&c.Day, &c.ClientCount, &c.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily client count: %w", err)
		}
		counts = append(counts, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily client counts: %w", err)
	}

	return counts, nil
}
