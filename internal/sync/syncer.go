// Package sync drives the EVO → local database pipeline: fetch member
// records, normalize them, extract proficiency levels and record level
// transitions. One run is strictly sequential; a bad record is collected and
// skipped, never aborting the batch.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/evo"
	"borntoski-evo-sync/internal/level"
	"borntoski-evo-sync/internal/metrics"
)

// History entry origins
const (
	OriginSync    = "sync"    // level extracted from the display name
	OriginProfile = "profile" // level read from the member's EVO level list
)

// Source is the slice of the EVO API the syncer consumes
type Source interface {
	ListMembers(ctx context.Context) ([]evo.Record, error)
	GetMemberProfile(ctx context.Context, memberID int64) (evo.Record, error)
	ListSchedule(ctx context.Context, dayISO string) ([]evo.Record, error)
	GetScheduleDetail(ctx context.Context, configurationID int64, activityDateISO string) (evo.Record, error)
}

// Syncer runs sync passes against the local database
type Syncer struct {
	db     *database.DB
	source Source
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Syncer
func New(db *database.DB, source Source, cfg *config.Config) *Syncer {
	return &Syncer{
		db:     db,
		source: source,
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Failure is one member record that could not be synced
type Failure struct {
	ExternalID string
	Err        error
}

// Result summarizes one sync run
type Result struct {
	RunID       string
	MembersSeen int
	Transitions int
	Failures    []Failure
	Duration    time.Duration
}

// Run performs a full member sync: fetch, normalize, upsert, record level
// transitions. Per-record failures are collected in the result; only a
// failure to reach EVO at all is returned as an error.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}

	metrics.SyncActive.Set(1)
	defer metrics.SyncActive.Set(0)

	if err := s.db.CreateSyncRun(result.RunID); err != nil {
		return nil, err
	}

	s.logger.Info("Starting member sync", "run_id", result.RunID)

	records, err := s.source.ListMembers(ctx)
	if err != nil {
		msg := err.Error()
		if ferr := s.db.FinishSyncRun(result.RunID, 0, 0, 0, &msg); ferr != nil {
			s.logger.Error("Failed to finish sync run", "run_id", result.RunID, "error", ferr)
		}
		metrics.SyncRunsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("failed to fetch members: %w", err)
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		member, ok := NormalizeMember(rec, s.cfg.StripLevelTokens)
		if !ok {
			s.logger.Warn("Skipping member record without external id")
			continue
		}
		if seen[member.ExternalID] {
			continue
		}
		seen[member.ExternalID] = true
		result.MembersSeen++

		origin := OriginSync
		if member.Level == "" && s.cfg.ProfileLevelLookup {
			if s.fillLevelFromProfile(ctx, member) {
				origin = OriginProfile
			}
		}

		if member.Level != "" {
			metrics.LevelExtractionsTotal.WithLabelValues(metrics.ExtractionHit).Inc()
		} else {
			metrics.LevelExtractionsTotal.WithLabelValues(metrics.ExtractionMiss).Inc()
		}

		if err := s.db.UpsertClient(member.ToClient()); err != nil {
			s.logger.Error("Failed to upsert client", "external_id", member.ExternalID, "error", err)
			result.Failures = append(result.Failures, Failure{ExternalID: member.ExternalID, Err: err})
			continue
		}

		// The upsert leaves current_level untouched, so the transition check
		// still compares against the pre-sync value
		recorded, err := s.db.RecordLevelIfChanged(member.ExternalID, member.Level, s.eventDate(), origin)
		if err != nil {
			s.logger.Error("Failed to record level", "external_id", member.ExternalID, "error", err)
			result.Failures = append(result.Failures, Failure{ExternalID: member.ExternalID, Err: err})
			continue
		}
		if recorded {
			result.Transitions++
			metrics.LevelTransitionsTotal.Inc()
			s.logger.Info("Level transition recorded",
				"external_id", member.ExternalID, "level", member.Level)
		}
	}

	if err := s.db.RegisterDailyClientCount(result.MembersSeen); err != nil {
		s.logger.Error("Failed to register daily client count", "error", err)
	}

	result.Duration = time.Since(start)

	var runErr *string
	if n := len(result.Failures); n > 0 {
		msg := fmt.Sprintf("%d of %d members failed", n, result.MembersSeen)
		runErr = &msg
	}
	if err := s.db.FinishSyncRun(result.RunID, result.MembersSeen, len(result.Failures), result.Transitions, runErr); err != nil {
		s.logger.Error("Failed to finish sync run", "run_id", result.RunID, "error", err)
	}

	outcome := metrics.ResultSuccess
	if len(result.Failures) > 0 {
		outcome = metrics.ResultPartial
	}
	metrics.SyncRunsTotal.WithLabelValues(outcome).Inc()
	metrics.SyncRunDuration.Observe(result.Duration.Seconds())
	metrics.SyncMembersProcessed.Observe(float64(result.MembersSeen))
	metrics.SyncMemberFailuresTotal.Add(float64(len(result.Failures)))

	s.logger.Info("Member sync finished",
		"run_id", result.RunID,
		"members", result.MembersSeen,
		"transitions", result.Transitions,
		"failures", len(result.Failures),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// fillLevelFromProfile looks up a member's EVO level list when their display
// name carries no code. The profile's memberLevel names are routed to ski and
// snowboard slots; the higher-ranked one wins. Returns whether a level was
// found.
func (s *Syncer) fillLevelFromProfile(ctx context.Context, member *Member) bool {
	id := asInt64(member.ExternalID)
	if id == 0 {
		return false
	}

	profile, err := s.source.GetMemberProfile(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to fetch member profile", "external_id", member.ExternalID, "error", err)
		return false
	}

	ski, snow := level.RouteLevelNames(evo.MemberLevelNames(profile))

	var best level.Result
	for _, cand := range []struct {
		name string
		d    level.Discipline
	}{
		{ski, level.DisciplineSki},
		{snow, level.DisciplineSnowboard},
	} {
		if cand.name == "" {
			continue
		}
		res := level.Extract(cand.name, false)
		if !res.HasLevel() {
			continue
		}
		if res.Discipline == level.DisciplineUndesignated {
			res.Discipline = cand.d
		}
		if !best.HasLevel() || res.Rank > best.Rank {
			best = res
		}
	}

	if !best.HasLevel() {
		return false
	}

	member.Level = best.Code
	member.LevelRank = int64(best.Rank)
	member.Discipline = string(best.Discipline)
	return true
}

// eventDate resolves the configured event-date policy. With the
// "last-session" policy the date is left empty so the store can fall back to
// the client's most recent attended session, then to today.
func (s *Syncer) eventDate() string {
	if s.cfg.EventDatePolicy == config.EventDatePolicyToday {
		return time.Now().Format("2006-01-02")
	}
	return ""
}

// SyncAgenda walks the schedule between two dates (inclusive) and records
// which known clients were enrolled in each slot. Detail lookups go through
// the supplied per-run cache. A failed day is logged and skipped.
func (s *Syncer) SyncAgenda(ctx context.Context, from, to time.Time, cache *DetailCache) (int, error) {
	if cache == nil {
		cache = NewDetailCache()
	}

	upserted := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		dayISO := day.Format("2006-01-02")

		slots, err := s.source.ListSchedule(ctx, dayISO)
		if err != nil {
			if ctx.Err() != nil {
				return upserted, ctx.Err()
			}
			s.logger.Error("Failed to fetch schedule", "day", dayISO, "error", err)
			continue
		}

		for _, slot := range slots {
			n, err := s.syncSlot(ctx, slot, dayISO, cache)
			if err != nil {
				if ctx.Err() != nil {
					return upserted, ctx.Err()
				}
				s.logger.Error("Failed to sync slot", "day", dayISO, "error", err)
				continue
			}
			upserted += n
		}
	}

	hits, misses := cache.Stats()
	s.logger.Info("Agenda sync finished", "sessions", upserted, "cache_hits", hits, "cache_misses", misses)

	return upserted, nil
}

func (s *Syncer) syncSlot(ctx context.Context, slot evo.Record, dayISO string, cache *DetailCache) (int, error) {
	configID := asInt64(evo.FirstString(slot, "idConfiguration", "configurationId"))
	if configID == 0 {
		return 0, nil
	}
	if raw := evo.FirstString(slot, "activityDate", "date"); raw != "" {
		dayISO = evo.DateOnly(raw)
	}

	// A cache hit means this slot was already handled during this run; the
	// schedule listing repeats configurations across views
	if _, ok := cache.Get(configID, dayISO); ok {
		return 0, nil
	}

	detail, err := s.source.GetScheduleDetail(ctx, configID, dayISO)
	if err != nil {
		return 0, err
	}
	cache.Put(configID, dayISO, detail)
	if detail == nil {
		return 0, nil
	}

	startTime := evo.FirstString(detail, "startTime")
	endTime := evo.FirstString(detail, "endTime")
	activity := evo.FirstString(detail, "name", "title")
	area := evo.FirstString(detail, "area")
	if startTime == "" {
		startTime = evo.FirstString(slot, "startTime")
	}
	if activity == "" {
		activity = evo.FirstString(slot, "name")
	}

	upserted := 0
	for _, enrollment := range evo.Enrollments(detail) {
		externalID := evo.FirstString(enrollment, "idMember", "memberId", "id")
		if externalID == "" {
			continue
		}

		// Sessions reference clients; skip enrollees not in the base yet
		client, err := s.db.GetClient(externalID)
		if err != nil {
			return upserted, err
		}
		if client == nil {
			continue
		}

		session := &database.Session{
			ClientExternalID: externalID,
			SessionDate:      dayISO,
			StartTime:        nullable(startTime),
			EndTime:          nullable(endTime),
			Activity:         nullable(activity),
			Area:             nullable(area),
			Status:           nullable(evo.FirstString(enrollment, "statusName", "status")),
		}
		if err := s.db.UpsertSession(session); err != nil {
			return upserted, err
		}
		upserted++
	}

	return upserted, nil
}

func asInt64(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
