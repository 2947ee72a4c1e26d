// Package worker schedules periodic sync runs against EVO.
package worker

import (
	"context"
	"log/slog"
	"time"

	syncpkg "borntoski-evo-sync/internal/sync"
)

// Runner runs one member sync pass
type Runner interface {
	Run(ctx context.Context) (*syncpkg.Result, error)
}

// Worker triggers sync runs on a fixed interval
type Worker struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	// Agenda lookback in days before today, 0 disables agenda syncing
	agendaLookbackDays int
	agendaSync         func(ctx context.Context, from, to time.Time) (int, error)
}

// NewWorker creates a new periodic sync worker
func NewWorker(runner Runner, interval time.Duration) *Worker {
	return &Worker{
		runner:   runner,
		interval: interval,
		logger:   slog.Default(),
	}
}

// WithAgendaSync enables agenda syncing over the given lookback window. The
// syncer's SyncAgenda method is the intended callback.
func (w *Worker) WithAgendaSync(lookbackDays int, fn func(ctx context.Context, from, to time.Time) (int, error)) *Worker {
	w.agendaLookbackDays = lookbackDays
	w.agendaSync = fn
	return w
}

// Start runs an immediate sync and then one per interval until the context is
// canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting sync worker", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping sync worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	result, err := w.runner.Run(ctx)
	if err != nil {
		w.logger.Error("Scheduled sync failed", "error", err)
		return
	}

	w.logger.Info("Scheduled sync finished",
		"run_id", result.RunID,
		"members", result.MembersSeen,
		"transitions", result.Transitions,
		"failures", len(result.Failures))

	if w.agendaSync != nil && w.agendaLookbackDays > 0 {
		to := time.Now()
		from := to.AddDate(0, 0, -w.agendaLookbackDays)
		sessions, err := w.agendaSync(ctx, from, to)
		if err != nil {
			w.logger.Error("Scheduled agenda sync failed", "error", err)
			return
		}
		w.logger.Info("Scheduled agenda sync finished", "sessions", sessions)
	}
}
