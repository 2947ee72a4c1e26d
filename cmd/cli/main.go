package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/evo"
	"borntoski-evo-sync/internal/reporting"
	syncpkg "borntoski-evo-sync/internal/sync"
)

func main() {
	// Disable structured logging for CLI
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" {
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to initialize schema: %v\n", err)
		os.Exit(1)
	}

	syncer := syncpkg.New(db, evo.NewClient(cfg), cfg)

	switch command {
	case "sync":
		handleSync(syncer)
	case "agenda":
		handleAgenda(syncer, cfg)
	case "history":
		handleHistory(db)
	case "recent":
		handleRecent(db, cfg)
	case "report":
		handleReport(db)
	case "export":
		handleExport(db)
	case "runs":
		handleRuns(db)
	case "wipe":
		handleWipe(db)
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown command '%s'\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`borntoski-evo-sync CLI - Client Base Management

Usage:
  cli <command> [options]

Commands:
  sync              Run a full member sync against EVO
  agenda            Sync the lesson agenda over the lookback window
  history <id>      Show a client's level history
  recent [since]    Show level changes since an ISO date (default: 30 days)
  report            Show level and demographic distributions
  export            Write all clients as CSV to stdout
  runs              List recent sync runs
  wipe              Delete all local data (schema is kept)
  help              Show this help message

Examples:
  cli sync
  cli history 12345
  cli recent 2026-01-01

Environment Variables Required:
  EVO_USER           - EVO API username
  EVO_TOKEN          - EVO API token
  INTERNAL_API_KEY   - Key protecting the HTTP API
  DATABASE_PATH      - SQLite database path (default: ./bts_clients.db)`)
}

func handleSync(syncer *syncpkg.Syncer) {
	fmt.Println("Running member sync...")

	result, err := syncer.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Sync failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSync %s finished in %s\n", result.RunID, result.Duration.Round(time.Millisecond))
	fmt.Printf("  Members seen: %d\n", result.MembersSeen)
	fmt.Printf("  Transitions:  %d\n", result.Transitions)
	fmt.Printf("  Failures:     %d\n", len(result.Failures))
	for _, f := range result.Failures {
		fmt.Printf("    %s: %v\n", f.ExternalID, f.Err)
	}
}

func handleAgenda(syncer *syncpkg.Syncer, cfg *config.Config) {
	to := time.Now()
	from := to.AddDate(0, 0, -cfg.AgendaLookbackDays)

	fmt.Printf("Syncing agenda from %s to %s...\n", from.Format("2006-01-02"), to.Format("2006-01-02"))

	n, err := syncer.SyncAgenda(context.Background(), from, to, syncpkg.NewDetailCache())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Agenda sync failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Recorded %d sessions\n", n)
}

func handleHistory(db *database.DB) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: Client ID required")
		fmt.Fprintln(os.Stderr, "Usage: cli history <client_id>")
		os.Exit(1)
	}
	externalID := os.Args[2]

	client, err := db.GetClient(externalID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if client == nil {
		fmt.Fprintf(os.Stderr, "Error: Client %s not found\n", externalID)
		os.Exit(1)
	}

	entries, err := db.GetLevelHistory(externalID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s (%s)\n", client.CleanLabel, client.ExternalID)
	if client.CurrentLevel != nil {
		fmt.Printf("Current level: %s\n", *client.CurrentLevel)
	} else {
		fmt.Println("Current level: none")
	}
	fmt.Println()

	if len(entries) == 0 {
		fmt.Println("No level history recorded.")
		return
	}

	for _, e := range entries {
		fmt.Printf("  %s  %-4s (%s)\n", e.EventDate, e.Level, e.Origin)
	}
}

func handleRecent(db *database.DB, cfg *config.Config) {
	since := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	if len(os.Args) >= 3 {
		since = os.Args[2]
		if _, err := time.Parse("2006-01-02", since); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Invalid date: %s\n", since)
			os.Exit(1)
		}
	}

	changes, err := db.GetRecentLevelChanges(since, cfg.HistoryActivationDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(changes) == 0 {
		fmt.Printf("No level changes since %s.\n", since)
		return
	}

	fmt.Printf("Level changes since %s:\n\n", since)
	for _, c := range changes {
		prev := "—"
		if c.PreviousLevel != nil {
			prev = *c.PreviousLevel
		}
		fmt.Printf("  %s  %-30s %s -> %s\n", c.EventDate, c.ClientLabel, prev, c.Level)
	}
}

func handleReport(db *database.DB) {
	clients, err := db.ListClients(0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report := reporting.BuildLevelReport(clients)

	fmt.Printf("Clients: %d total, %d with a level\n\n", report.TotalClients, report.WithLevel)

	printBuckets := func(title string, buckets []reporting.Bucket) {
		if len(buckets) == 0 {
			return
		}
		fmt.Println(title + ":")
		for _, b := range buckets {
			fmt.Printf("  %-20s %5d  (%.1f%%)\n", b.Key, b.Count, b.Percent)
		}
		fmt.Println()
	}

	printBuckets("Levels", report.Levels)
	printBuckets("Disciplines", report.Disciplines)
	printBuckets("Genders", report.Genders)
	printBuckets("Cities", report.Cities)
}

func handleExport(db *database.DB) {
	clients, err := db.ListClients(0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := csv.NewWriter(os.Stdout)
	w.Write([]string{
		"external_id", "name", "level", "level_rank", "discipline",
		"gender", "birth_date", "age", "city", "state", "email", "phone",
	})

	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}

	for _, c := range clients {
		rank, age := "", ""
		if c.CurrentLevelRank != nil {
			rank = strconv.FormatInt(*c.CurrentLevelRank, 10)
		}
		if c.Age != nil {
			age = strconv.FormatInt(*c.Age, 10)
		}
		w.Write([]string{
			c.ExternalID, c.CleanLabel, str(c.CurrentLevel), rank, str(c.Discipline),
			str(c.Gender), str(c.BirthDate), age, str(c.City), str(c.State),
			str(c.Email), str(c.Phone),
		})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleRuns(db *database.DB) {
	runs, err := db.ListSyncRuns(20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Println("No sync runs recorded.")
		return
	}

	for _, r := range runs {
		status := "running"
		if r.FinishedAt != nil {
			status = "ok"
			if r.Error != nil {
				status = *r.Error
			}
		}
		fmt.Printf("%s  %s  members=%d transitions=%d failed=%d  %s\n",
			time.Unix(r.StartedAt, 0).Format("2006-01-02 15:04:05"),
			r.RunID, r.MembersSeen, r.Transitions, r.MembersFailed, status)
	}
}

func handleWipe(db *database.DB) {
	fmt.Print("This deletes ALL local data. Type 'yes' to continue: ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "yes" {
		fmt.Println("Aborted.")
		return
	}

	if err := db.Wipe(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Database wiped")
}
