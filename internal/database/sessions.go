package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is one lesson a client was enrolled in, as observed in the EVO
// agenda. Sessions feed the event-date fallback for level transitions.
type Session struct {
	ID               int64
	ClientExternalID string
	SessionDate      string // ISO date
	StartTime        *string
	EndTime          *string
	Activity         *string
	Area             *string
	Status           *string
	CreatedAt        int64
}

// UpsertSession inserts a session, ignoring duplicates re-seen across syncs
func (db *DB) UpsertSession(s *Session) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}

	_, err := db.conn.Exec(`
		INSERT INTO sessions (client_external_id, session_date, start_time, end_time, activity, area, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_external_id, session_date, start_time, activity) DO UPDATE SET
			end_time = excluded.end_time,
			area = excluded.area,
			status = excluded.status
	`, s.ClientExternalID, s.SessionDate, s.StartTime, s.EndTime, s.Activity, s.Area, s.Status, s.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// LastSessionDate returns the date of the client's most recent session on or
// before today, or "" when the client has no attended sessions yet
func (db *DB) LastSessionDate(externalID string) (string, error) {
	today := time.Now().Format("2006-01-02")

	var d string
	err := db.conn.QueryRow(`
		SELECT session_date FROM sessions
		WHERE client_external_id = ? AND session_date <= ?
		ORDER BY session_date DESC
		LIMIT 1
	`, externalID, today).Scan(&d)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last session date: %w", err)
	}
	return d, nil
}

// ListSessions returns a client's sessions ordered by date and start time
func (db *DB) ListSessions(externalID string) ([]*Session, error) {
	rows, err := db.conn.Query(`
		SELECT id, client_external_id, session_date, start_time, end_time, activity, area, status, created_at
		FROM sessions
		WHERE client_external_id = ?
		ORDER BY session_date, start_time
	`, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		err := rows.Scan(&s.ID, &s.ClientExternalID, &s.SessionDate, &s.StartTime, &s.EndTime, &s.Activity, &s.Area, &s.Status, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}
