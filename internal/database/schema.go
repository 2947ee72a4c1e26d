package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Clients table: current state of every EVO member, one row per external id
CREATE TABLE IF NOT EXISTS clients (
    external_id TEXT PRIMARY KEY,

    -- Name as received and with level tokens optionally stripped
    raw_label TEXT NOT NULL DEFAULT '',
    clean_label TEXT NOT NULL DEFAULT '',

    -- Most recently observed proficiency level
    current_level TEXT,
    current_level_rank INTEGER,
    discipline TEXT,

    -- Profile
    gender TEXT,
    birth_date TEXT,  -- ISO date
    age INTEGER,

    -- Address
    street TEXT,
    number TEXT,
    complement TEXT,
    neighborhood TEXT,
    city TEXT,
    state TEXT,
    zip_code TEXT,

    -- Contact
    email TEXT,
    phone TEXT,

    -- Date the member was created in EVO (ISO date)
    external_created_at TEXT,

    -- Metadata (unix timestamps); created_at is first-write-wins
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Level history table: append-only log of level transitions
CREATE TABLE IF NOT EXISTS level_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_external_id TEXT NOT NULL,

    event_date TEXT NOT NULL,  -- ISO date the change is attributed to
    level TEXT NOT NULL,
    level_rank INTEGER NOT NULL,
    origin TEXT NOT NULL,      -- e.g. "sync", "manual"

    recorded_at INTEGER NOT NULL,  -- audit only, not business time

    FOREIGN KEY (client_external_id) REFERENCES clients(external_id) ON DELETE CASCADE
);

-- Sessions table: attended/booked lessons per client, used as the event-date
-- fallback when a level transition has no authoritative date
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    client_external_id TEXT NOT NULL,

    session_date TEXT NOT NULL,  -- ISO date
    start_time TEXT,             -- HH:MM
    end_time TEXT,
    activity TEXT,
    area TEXT,
    status TEXT,

    created_at INTEGER NOT NULL,

    FOREIGN KEY (client_external_id) REFERENCES clients(external_id) ON DELETE CASCADE
);

-- Daily client counts: one snapshot of the client-base size per day
CREATE TABLE IF NOT EXISTS daily_client_counts (
    day TEXT PRIMARY KEY,  -- ISO date
    client_count INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL
);

-- Sync runs: one row per sync invocation for audit and troubleshooting
CREATE TABLE IF NOT EXISTS sync_runs (
    run_id TEXT PRIMARY KEY,  -- UUID
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    members_seen INTEGER NOT NULL DEFAULT 0,
    members_failed INTEGER NOT NULL DEFAULT 0,
    transitions INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

-- Indexes for clients table
CREATE INDEX IF NOT EXISTS idx_clients_current_level ON clients(current_level);
CREATE INDEX IF NOT EXISTS idx_clients_city ON clients(city);

-- Indexes for level_history table
CREATE INDEX IF NOT EXISTS idx_history_client ON level_history(client_external_id);
CREATE INDEX IF NOT EXISTS idx_history_event_date ON level_history(event_date);

-- Indexes for sessions table
CREATE INDEX IF NOT EXISTS idx_sessions_client_date ON sessions(client_external_id, session_date DESC);

-- Dedupe booked lessons re-seen across syncs
CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_unique ON sessions(client_external_id, session_date, start_time, activity);

-- Index for sync_runs table
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at DESC);
`
