package database

import (
	"testing"
)

func TestDatabaseLifecycle(t *testing.T) {
	dbPath := t.TempDir() + "/test.db"

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.Health(); err != nil {
		t.Errorf("Expected healthy database, got %v", err)
	}

	// Init is idempotent
	if err := db.Init(); err != nil {
		t.Errorf("Expected repeated init to succeed, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	if err := db.UpsertClient(&Client{ExternalID: "1001", CleanLabel: "Ana"}); err != nil {
		t.Fatalf("Failed to upsert client: %v", err)
	}

	s := &Session{
		ClientExternalID: "1001",
		SessionDate:      "2025-06-10",
		StartTime:        strPtr("09:00"),
		EndTime:          strPtr("10:00"),
		Activity:         strPtr("Ski Aula"),
		Status:           strPtr("attended"),
	}
	if err := db.UpsertSession(s); err != nil {
		t.Fatalf("Failed to upsert session: %v", err)
	}

	// Re-seeing the same slot across syncs must not duplicate it
	if err := db.UpsertSession(s); err != nil {
		t.Fatalf("Failed to re-upsert session: %v", err)
	}

	sessions, err := db.ListSessions("1001")
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}

	last, err := db.LastSessionDate("1001")
	if err != nil {
		t.Fatalf("Failed to get last session date: %v", err)
	}
	if last != "2025-06-10" {
		t.Errorf("Expected last session 2025-06-10, got %s", last)
	}

	// Future bookings don't count as "last attended"
	if err := db.UpsertSession(&Session{
		ClientExternalID: "1001",
		SessionDate:      "2999-01-01",
		StartTime:        strPtr("09:00"),
		Activity:         strPtr("Ski Aula"),
	}); err != nil {
		t.Fatalf("Failed to upsert future session: %v", err)
	}

	last, err = db.LastSessionDate("1001")
	if err != nil {
		t.Fatalf("Failed to get last session date: %v", err)
	}
	if last != "2025-06-10" {
		t.Errorf("Expected future booking to be ignored, got %s", last)
	}

	none, err := db.LastSessionDate("nobody")
	if err != nil {
		t.Fatalf("Expected no error for client without sessions, got %v", err)
	}
	if none != "" {
		t.Errorf("Expected empty date, got %s", none)
	}
}

func TestDailyClientCounts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.RegisterDailyClientCount(10); err != nil {
		t.Fatalf("Failed to register count: %v", err)
	}
	// Same-day snapshot overwrites
	if err := db.RegisterDailyClientCount(12); err != nil {
		t.Fatalf("Failed to re-register count: %v", err)
	}

	counts, err := db.ListDailyClientCounts()
	if err != nil {
		t.Fatalf("Failed to list counts: %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(counts))
	}
	if counts[0].ClientCount != 12 {
		t.Errorf("Expected count 12, got %d", counts[0].ClientCount)
	}
}

func TestSyncRuns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.CreateSyncRun("run-1"); err != nil {
		t.Fatalf("Failed to create sync run: %v", err)
	}

	run, err := db.GetSyncRun("run-1")
	if err != nil {
		t.Fatalf("Failed to get sync run: %v", err)
	}
	if run == nil || run.FinishedAt != nil {
		t.Fatalf("Expected in-progress run, got %+v", run)
	}

	errMsg := "2 members failed"
	if err := db.FinishSyncRun("run-1", 100, 2, 5, &errMsg); err != nil {
		t.Fatalf("Failed to finish sync run: %v", err)
	}

	run, err = db.GetSyncRun("run-1")
	if err != nil {
		t.Fatalf("Failed to get sync run: %v", err)
	}
	if run.FinishedAt == nil {
		t.Error("Expected finished_at to be set")
	}
	if run.MembersSeen != 100 || run.MembersFailed != 2 || run.Transitions != 5 {
		t.Errorf("Unexpected run stats: %+v", run)
	}
	if run.Error == nil || *run.Error != errMsg {
		t.Errorf("Expected error message, got %v", run.Error)
	}

	runs, err := db.ListSyncRuns(10)
	if err != nil {
		t.Fatalf("Failed to list sync runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("Expected 1 run, got %d", len(runs))
	}

	if err := db.FinishSyncRun("missing", 0, 0, 0, nil); err == nil {
		t.Error("Expected error finishing unknown run")
	}

	missing, err := db.GetSyncRun("missing")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for unknown run")
	}
}

func TestWipe(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.Init(); err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}

	if err := db.UpsertClient(&Client{ExternalID: "1001", CleanLabel: "Ana"}); err != nil {
		t.Fatalf("Failed to upsert client: %v", err)
	}
	if _, err := db.RecordLevelIfChanged("1001", "1B", "2025-06-01", "sync"); err != nil {
		t.Fatalf("Failed to record level: %v", err)
	}

	if err := db.Wipe(); err != nil {
		t.Fatalf("Failed to wipe: %v", err)
	}

	n, err := db.CountClients()
	if err != nil {
		t.Fatalf("Failed to count clients: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 clients after wipe, got %d", n)
	}

	h, err := db.CountLevelHistory()
	if err != nil {
		t.Fatalf("Failed to count history: %v", err)
	}
	if h != 0 {
		t.Errorf("Expected 0 history rows after wipe, got %d", h)
	}
}
