package metrics

import (
	"context"
	"log/slog"
	"time"
)

// DB interface for database size gauges
type DB interface {
	CountClients() (int, error)
	CountLevelHistory() (int, error)
}

// StartTableSizeCollector starts a background goroutine that periodically
// refreshes the database row-count gauges
func StartTableSizeCollector(ctx context.Context, db DB, interval time.Duration) {
	logger := slog.Default()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect once immediately
	collectTableSizes(db, logger)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Table size collector stopping")
			return
		case <-ticker.C:
			collectTableSizes(db, logger)
		}
	}
}

func collectTableSizes(db DB, logger *slog.Logger) {
	if n, err := db.CountClients(); err != nil {
		logger.Error("Failed to count clients", "error", err)
	} else {
		ClientsTotal.Set(float64(n))
	}

	if n, err := db.CountLevelHistory(); err != nil {
		logger.Error("Failed to count level history rows", "error", err)
	} else {
		LevelHistoryRowsTotal.Set(float64(n))
	}
}
