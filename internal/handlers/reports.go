package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/reporting"
)

// ReportsHandler serves aggregated views of the client base
type ReportsHandler struct {
	db     *database.DB
	config *config.Config
	logger *slog.Logger
}

// NewReportsHandler creates a new reports handler
func NewReportsHandler(db *database.DB, cfg *config.Config) *ReportsHandler {
	return &ReportsHandler{
		db:     db,
		config: cfg,
		logger: slog.Default(),
	}
}

// HandleLevelReport handles GET /reports/levels
// Returns the level, discipline and demographic distributions over the whole
// client base.
//
// Authentication: Requires Authorization header
func (h *ReportsHandler) HandleLevelReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !authorized(r, h.config) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	clients, err := h.db.ListClients(0, 0)
	if err != nil {
		h.logger.Error("Failed to list clients for report", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	report := reporting.BuildLevelReport(clients)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		h.logger.Error("Failed to encode level report", "error", err)
	}
}

// HealthHandler reports process and database health
type HealthHandler struct {
	db *database.DB
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleHealth handles GET /health. No authentication so load balancers can
// probe it.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK
	if err := h.db.Health(); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
