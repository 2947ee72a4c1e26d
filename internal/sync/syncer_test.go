package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/evo"
)

type fakeSource struct {
	members    []evo.Record
	membersErr error

	profiles map[int64]evo.Record

	schedule       map[string][]evo.Record
	details        map[string]evo.Record
	detailRequests int
}

func (f *fakeSource) ListMembers(ctx context.Context) ([]evo.Record, error) {
	return f.members, f.membersErr
}

func (f *fakeSource) GetMemberProfile(ctx context.Context, memberID int64) (evo.Record, error) {
	return f.profiles[memberID], nil
}

func (f *fakeSource) ListSchedule(ctx context.Context, dayISO string) ([]evo.Record, error) {
	return f.schedule[dayISO], nil
}

func (f *fakeSource) GetScheduleDetail(ctx context.Context, configurationID int64, activityDateISO string) (evo.Record, error) {
	f.detailRequests++
	return f.details[detailKey(configurationID, activityDateISO)], nil
}

func newTestSyncer(t *testing.T, source Source) (*Syncer, *database.DB) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Init(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}

	cfg := &config.Config{
		StripLevelTokens: false,
		EventDatePolicy:  config.EventDatePolicyLastSession,
	}

	return New(db, source, cfg), db
}

func TestRunSyncsMembers(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{
			{"idMember": float64(1), "fullName": "João Paulo 3C"},
			{"idMember": float64(2), "fullName": "MARIA SILVA"},
			{"idMember": float64(1), "fullName": "João Paulo 3C"}, // duplicate
		},
	}
	syncer, db := newTestSyncer(t, source)

	result, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if result.MembersSeen != 2 {
		t.Errorf("members seen = %d, want 2 (duplicate collapsed)", result.MembersSeen)
	}
	if result.Transitions != 1 {
		t.Errorf("transitions = %d, want 1", result.Transitions)
	}
	if len(result.Failures) != 0 {
		t.Errorf("failures = %v", result.Failures)
	}

	client, err := db.GetClient("1")
	if err != nil {
		t.Fatalf("failed to get client: %v", err)
	}
	if client == nil || client.CurrentLevel == nil || *client.CurrentLevel != "3C" {
		t.Errorf("client 1 = %+v, want level 3C", client)
	}

	// MARIA has no level code, so no history entry
	entries, err := db.GetLevelHistory("2")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("client 2 history = %d entries, want 0", len(entries))
	}

	run, err := db.GetSyncRun(result.RunID)
	if err != nil {
		t.Fatalf("failed to get sync run: %v", err)
	}
	if run == nil || run.FinishedAt == nil {
		t.Fatal("expected a finished sync run")
	}
	if run.MembersSeen != 2 || run.Transitions != 1 || run.Error != nil {
		t.Errorf("sync run = %+v", run)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{{"idMember": "1", "fullName": "CARLA 2A"}},
	}
	syncer, db := newTestSyncer(t, source)

	for i := 0; i < 3; i++ {
		if _, err := syncer.Run(context.Background()); err != nil {
			t.Fatalf("sync %d failed: %v", i, err)
		}
	}

	entries, err := db.GetLevelHistory("1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("history entries = %d, want 1 across repeated syncs", len(entries))
	}
}

func TestRunRecordsTransition(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{{"idMember": "1", "fullName": "CARLA 2A"}},
	}
	syncer, db := newTestSyncer(t, source)

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The instructor renames the member after a promotion
	source.members = []evo.Record{{"idMember": "1", "fullName": "CARLA 3C"}}
	result, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if result.Transitions != 1 {
		t.Errorf("transitions = %d, want 1", result.Transitions)
	}

	entries, err := db.GetLevelHistory("1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 2 || entries[1].Level != "3C" {
		t.Errorf("history = %+v, want 2A then 3C", entries)
	}
}

func TestRunKeepsLevelWhenNameLosesToken(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{{"idMember": "1", "fullName": "CARLA 2A"}},
	}
	syncer, db := newTestSyncer(t, source)

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	// The instructor fixes the name without re-adding the token
	source.members = []evo.Record{{"idMember": "1", "fullName": "CARLA SILVA"}}
	result, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if result.Transitions != 0 {
		t.Errorf("transitions = %d, want 0", result.Transitions)
	}

	client, err := db.GetClient("1")
	if err != nil {
		t.Fatalf("failed to get client: %v", err)
	}
	if client.CleanLabel != "CARLA SILVA" {
		t.Errorf("clean label = %q, want the renamed member", client.CleanLabel)
	}
	if client.CurrentLevel == nil || *client.CurrentLevel != "2A" {
		t.Errorf("current level = %v, want 2A kept", client.CurrentLevel)
	}

	entries, err := db.GetLevelHistory("1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("history entries = %d, want 1", len(entries))
	}
}

func TestRunFetchFailure(t *testing.T) {
	source := &fakeSource{membersErr: errors.New("evo is down")}
	syncer, db := newTestSyncer(t, source)

	if _, err := syncer.Run(context.Background()); err == nil {
		t.Fatal("expected an error when the fetch fails")
	}

	runs, err := db.ListSyncRuns(1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Error == nil {
		t.Fatalf("expected a failed run on record, got %+v", runs)
	}
}

func TestRunRegistersDailyCount(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{
			{"idMember": "1", "fullName": "A 1A"},
			{"idMember": "2", "fullName": "B 1B"},
		},
	}
	syncer, db := newTestSyncer(t, source)

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	counts, err := db.ListDailyClientCounts()
	if err != nil {
		t.Fatalf("failed to list counts: %v", err)
	}
	if len(counts) != 1 || counts[0].ClientCount != 2 {
		t.Errorf("daily counts = %+v, want one row with count 2", counts)
	}
}

func TestSyncAgenda(t *testing.T) {
	day := time.Now().AddDate(0, 0, -1)
	dayISO := day.Format("2006-01-02")

	source := &fakeSource{
		members: []evo.Record{{"idMember": "1", "fullName": "CARLA 2A"}},
		schedule: map[string][]evo.Record{
			dayISO: {
				{"idConfiguration": float64(10), "activityDate": dayISO + "T00:00:00", "startTime": "09:00"},
				// Same slot listed twice; the detail must only be fetched once
				{"idConfiguration": float64(10), "activityDate": dayISO + "T00:00:00", "startTime": "09:00"},
			},
		},
		details: map[string]evo.Record{
			detailKey(10, dayISO): {
				"name":      "Aula de Esqui",
				"startTime": "09:00",
				"endTime":   "10:00",
				"enrollments": []any{
					map[string]any{"idMember": float64(1), "statusName": "Attended"},
					map[string]any{"idMember": float64(999)}, // unknown client, skipped
				},
			},
		},
	}
	syncer, db := newTestSyncer(t, source)

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("member sync failed: %v", err)
	}

	n, err := syncer.SyncAgenda(context.Background(), day, day, NewDetailCache())
	if err != nil {
		t.Fatalf("agenda sync failed: %v", err)
	}
	if n != 1 {
		t.Errorf("sessions upserted = %d, want 1", n)
	}
	if source.detailRequests != 1 {
		t.Errorf("detail requests = %d, want 1 (second slot served from cache)", source.detailRequests)
	}

	sessions, err := db.ListSessions("1")
	if err != nil {
		t.Fatalf("failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	s := sessions[0]
	if s.SessionDate != dayISO || s.Activity == nil || *s.Activity != "Aula de Esqui" {
		t.Errorf("session = %+v", s)
	}

	// Now the attended session anchors the next level transition's event date
	source.members = []evo.Record{{"idMember": "1", "fullName": "CARLA 3A"}}
	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("second member sync failed: %v", err)
	}

	entries, err := db.GetLevelHistory("1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history = %d entries, want 2", len(entries))
	}
	var promotion *database.LevelHistoryEntry
	for _, e := range entries {
		if e.Level == "3A" {
			promotion = e
		}
	}
	if promotion == nil {
		t.Fatal("3A entry not recorded")
	}
	if promotion.EventDate != dayISO {
		t.Errorf("event date = %q, want last session date %q", promotion.EventDate, dayISO)
	}
}

func TestRunProfileLevelFallback(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{{"idMember": float64(5), "fullName": "RAFAEL SANTOS"}},
		profiles: map[int64]evo.Record{
			5: {"memberLevel": []any{
				map[string]any{"currentLevelName": "2C SKI"},
				map[string]any{"currentLevelName": "3A SB"},
			}},
		},
	}
	syncer, db := newTestSyncer(t, source)
	syncer.cfg.ProfileLevelLookup = true

	result, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Transitions != 1 {
		t.Fatalf("transitions = %d, want 1", result.Transitions)
	}

	client, err := db.GetClient("5")
	if err != nil {
		t.Fatalf("failed to get client: %v", err)
	}
	// The snowboard level outranks the ski one
	if client.CurrentLevel == nil || *client.CurrentLevel != "3A" {
		t.Errorf("current level = %v, want 3A", client.CurrentLevel)
	}
	if client.Discipline == nil || *client.Discipline != "SB" {
		t.Errorf("discipline = %v, want SB", client.Discipline)
	}

	entries, err := db.GetLevelHistory("5")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 1 || entries[0].Origin != OriginProfile {
		t.Errorf("history = %+v, want one entry with profile origin", entries)
	}
}

func TestEventDatePolicyToday(t *testing.T) {
	source := &fakeSource{
		members: []evo.Record{{"idMember": "1", "fullName": "CARLA 2A"}},
	}
	syncer, db := newTestSyncer(t, source)
	syncer.cfg.EventDatePolicy = config.EventDatePolicyToday

	if _, err := syncer.Run(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	entries, err := db.GetLevelHistory("1")
	if err != nil {
		t.Fatalf("failed to get history: %v", err)
	}
	if len(entries) != 1 || entries[0].EventDate != time.Now().Format("2006-01-02") {
		t.Errorf("history = %+v, want today's event date", entries)
	}
}
