package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"borntoski-evo-sync/internal/config"
	syncpkg "borntoski-evo-sync/internal/sync"
)

// SyncRunner runs one member sync pass
type SyncRunner interface {
	Run(ctx context.Context) (*syncpkg.Result, error)
}

// SyncHandler handles on-demand sync triggers
type SyncHandler struct {
	runner SyncRunner
	config *config.Config
	logger *slog.Logger

	// Only one sync may run at a time
	inProgress atomic.Bool
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, cfg *config.Config) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		config: cfg,
		logger: slog.Default(),
	}
}

// HandleSync handles POST /sync
// Runs a full member sync synchronously and reports the outcome.
//
// Authentication: Requires Authorization header
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !authorized(r, h.config) {
		h.logger.Warn("Unauthorized sync request", "has_auth", r.Header.Get("Authorization") != "")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.inProgress.CompareAndSwap(false, true) {
		http.Error(w, "Sync already in progress", http.StatusConflict)
		return
	}
	defer h.inProgress.Store(false)

	result, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("Sync failed", "error", err)
		http.Error(w, "Sync failed", http.StatusBadGateway)
		return
	}

	failures := make([]map[string]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		failures = append(failures, map[string]string{
			"external_id": f.ExternalID,
			"error":       f.Err.Error(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"run_id":       result.RunID,
		"members_seen": result.MembersSeen,
		"transitions":  result.Transitions,
		"failures":     failures,
		"duration_ms":  result.Duration.Milliseconds(),
	}); err != nil {
		h.logger.Error("Failed to encode sync response", "error", err)
	}
}

// authorized checks the internal API key on an incoming request
func authorized(r *http.Request, cfg *config.Config) bool {
	return r.Header.Get("Authorization") == "Bearer "+cfg.InternalAPIKey
}
