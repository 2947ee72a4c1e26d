package database

import (
	"fmt"
	"strings"
	"time"

	"borntoski-evo-sync/internal/level"
)

// LevelHistoryEntry is one row of the append-only level change log
type LevelHistoryEntry struct {
	ID               int64
	ClientExternalID string
	EventDate        string // ISO date
	Level            string
	LevelRank        int64
	Origin           string
	RecordedAt       int64
}

// LevelChange is a history entry interpreted as a transition: it carries the
// level of the immediately preceding entry for the same client (nil when the
// entry is the client's initial baseline)
type LevelChange struct {
	LevelHistoryEntry
	PreviousLevel *string
	ClientLabel   string
}

// RecordLevelIfChanged appends a history entry and updates the client's
// current level, but only when the newly observed level differs from the
// stored one (case-insensitive). Repeated syncs with an unchanged level are
// no-ops, which keeps the history free of duplicates.
//
// An empty newLevel is never recorded as a transition. When eventDate is
// empty the entry is attributed to the client's most recent attended session,
// and failing that to today. Returns whether an entry was written.
func (db *DB) RecordLevelIfChanged(externalID, newLevel, eventDate, origin string) (bool, error) {
	if strings.TrimSpace(newLevel) == "" {
		return false, nil
	}

	code := level.NormalizeCode(newLevel)
	rank, ok := level.Rank(code)
	if !ok {
		return false, fmt.Errorf("invalid level code: %q", newLevel)
	}

	client, err := db.GetClient(externalID)
	if err != nil {
		return false, err
	}
	if client == nil {
		return false, fmt.Errorf("client %s not found", externalID)
	}

	if client.CurrentLevel != nil && strings.EqualFold(*client.CurrentLevel, code) {
		return false, nil
	}

	if eventDate == "" {
		eventDate, err = db.LastSessionDate(externalID)
		if err != nil {
			return false, err
		}
		if eventDate == "" {
			eventDate = time.Now().Format("2006-01-02")
		}
	}

	now := time.Now().Unix()

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO level_history (client_external_id, event_date, level, level_rank, origin, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, externalID, eventDate, code, rank, origin, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert level history: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE clients
		SET current_level = ?, current_level_rank = ?, updated_at = ?
		WHERE external_id = ?
	`, code, rank, now, externalID)
	if err != nil {
		return false, fmt.Errorf("failed to update client level: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit level change: %w", err)
	}

	return true, nil
}

// GetLevelHistory returns all history entries for a client ordered by
// (event_date, recorded_at) ascending, suitable for timeline plotting
func (db *DB) GetLevelHistory(externalID string) ([]*LevelHistoryEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, client_external_id, event_date, level, level_rank, origin, recorded_at
		FROM level_history
		WHERE client_external_id = ?
		ORDER BY event_date, recorded_at, id
	`, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get level history: %w", err)
	}
	defer rows.Close()

	var entries []*LevelHistoryEntry
	for rows.Next() {
		var e LevelHistoryEntry
		err := rows.Scan(&e.ID, &e.ClientExternalID, &e.EventDate, &e.Level, &e.LevelRank, &e.Origin, &e.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level history entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level history: %w", err)
	}

	return entries, nil
}

// GetRecentLevelChanges returns transitions across all clients with
// event_date >= since. Each entry is compared to the immediately preceding
// entry for the same client, not to the client's current level (which may
// have moved further since). A client's very first entry only counts as a
// change when its event_date is on or after the activation date, so the
// first-ever sync does not flood the view with pre-existing baselines.
func (db *DB) GetRecentLevelChanges(since, activation string) ([]*LevelChange, error) {
	rows, err := db.conn.Query(`
		SELECT h.id, h.client_external_id, h.event_date, h.level, h.level_rank, h.origin, h.recorded_at,
		       c.clean_label
		FROM level_history h
		JOIN clients c ON c.external_id = h.client_external_id
		ORDER BY h.client_external_id, h.event_date, h.recorded_at, h.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan level history: %w", err)
	}
	defer rows.Close()

	var changes []*LevelChange
	var prevClient string
	var prevLevel string
	hasPrev := false

	for rows.Next() {
		var e LevelChange
		err := rows.Scan(&e.ID, &e.ClientExternalID, &e.EventDate, &e.Level, &e.LevelRank, &e.Origin, &e.RecordedAt, &e.ClientLabel)
		if err != nil {
			return nil, fmt.Errorf("failed to scan level change: %w", err)
		}

		if e.ClientExternalID != prevClient {
			prevClient = e.ClientExternalID
			hasPrev = false
		}

		isChange := false
		if hasPrev {
			if !strings.EqualFold(prevLevel, e.Level) {
				p := prevLevel
				e.PreviousLevel = &p
				isChange = true
			}
		} else if activation == "" || e.EventDate >= activation {
			// Initial baseline, only counted past the activation cutoff
			isChange = true
		}

		prevLevel = e.Level
		hasPrev = true

		if isChange && e.EventDate >= since {
			changes = append(changes, &e)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating level changes: %w", err)
	}

	return changes, nil
}

// CountLevelHistory returns the total number of history rows
func (db *DB) CountLevelHistory() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM level_history").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count level history: %w", err)
	}
	return n, nil
}
