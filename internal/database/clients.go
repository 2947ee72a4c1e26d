package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Client represents one EVO member's current state
type Client struct {
	ExternalID        string
	RawLabel          string
	CleanLabel        string
	CurrentLevel      *string
	CurrentLevelRank  *int64
	Discipline        *string
	Gender            *string
	BirthDate         *string
	Age               *int64
	Street            *string
	Number            *string
	Complement        *string
	Neighborhood      *string
	City              *string
	State             *string
	ZipCode           *string
	Email             *string
	Phone             *string
	ExternalCreatedAt *string
	CreatedAt         int64
	UpdatedAt         int64
}

const clientColumns = `external_id, raw_label, clean_label, current_level, current_level_rank,
       discipline, gender, birth_date, age,
       street, number, complement, neighborhood, city, state, zip_code,
       email, phone, external_created_at, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	err := row.Scan(
		&c.ExternalID, &c.RawLabel, &c.CleanLabel, &c.CurrentLevel, &c.CurrentLevelRank,
		&c.Discipline, &c.Gender, &c.BirthDate, &c.Age,
		&c.Street, &c.Number, &c.Complement, &c.Neighborhood, &c.City, &c.State, &c.ZipCode,
		&c.Email, &c.Phone, &c.ExternalCreatedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertClient inserts a new client or updates all mutable attributes of an
// existing row keyed by external_id. The created_at timestamp is
// first-write-wins; everything else is last-write-wins.
//
// current_level and current_level_rank are never written here: those columns
// belong to RecordLevelIfChanged, which snapshots the stored level before
// moving it. Writing them on upsert would both erase the transition being
// detected and wipe the level whenever a display name temporarily loses its
// token.
func (db *DB) UpsertClient(c *Client) error {
	now := time.Now().Unix()
	c.UpdatedAt = now
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}

	_, err := db.conn.Exec(`
		INSERT INTO clients (
			external_id, raw_label, clean_label,
			discipline, gender, birth_date, age,
			street, number, complement, neighborhood, city, state, zip_code,
			email, phone, external_created_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			raw_label = excluded.raw_label,
			clean_label = excluded.clean_label,
			discipline = excluded.discipline,
			gender = excluded.gender,
			birth_date = excluded.birth_date,
			age = excluded.age,
			street = excluded.street,
			number = excluded.number,
			complement = excluded.complement,
			neighborhood = excluded.neighborhood,
			city = excluded.city,
			state = excluded.state,
			zip_code = excluded.zip_code,
			email = excluded.email,
			phone = excluded.phone,
			external_created_at = COALESCE(clients.external_created_at, excluded.external_created_at),
			created_at = clients.created_at,
			updated_at = excluded.updated_at
	`, c.ExternalID, c.RawLabel, c.CleanLabel,
		c.Discipline, c.Gender, c.BirthDate, c.Age,
		c.Street, c.Number, c.Complement, c.Neighborhood, c.City, c.State, c.ZipCode,
		c.Email, c.Phone, c.ExternalCreatedAt, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by external ID
func (db *DB) GetClient(externalID string) (*Client, error) {
	c, err := scanClient(db.conn.QueryRow(`
		SELECT `+clientColumns+`
		FROM clients WHERE external_id = ?
	`, externalID))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ListClients returns clients ordered by clean label with pagination.
// A limit of 0 means no limit.
func (db *DB) ListClients(offset, limit int) ([]*Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		ORDER BY clean_label COLLATE NOCASE
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// CountClients returns the total number of client rows
func (db *DB) CountClients() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM clients").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// UpdateClientLevel sets a client's current level and rank
func (db *DB) UpdateClientLevel(externalID, level string, rank int64) error {
	result, err := db.conn.Exec(`
		UPDATE clients
		SET current_level = ?, current_level_rank = ?, updated_at = ?
		WHERE external_id = ?
	`, level, rank, time.Now().Unix(), externalID)

	if err != nil {
		return fmt.Errorf("failed to update client level: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("client not found")
	}

	return nil
}
