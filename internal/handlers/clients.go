package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
)

// ClientsHandler serves the client base: listings, per-client level history
// and the recent-changes feed
type ClientsHandler struct {
	db     *database.DB
	config *config.Config
	logger *slog.Logger
}

// NewClientsHandler creates a new clients handler
func NewClientsHandler(db *database.DB, cfg *config.Config) *ClientsHandler {
	return &ClientsHandler{
		db:     db,
		config: cfg,
		logger: slog.Default(),
	}
}

type clientResponse struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	RawName    string  `json:"raw_name,omitempty"`
	Level      *string `json:"level"`
	LevelRank  *int64  `json:"level_rank,omitempty"`
	Discipline *string `json:"discipline,omitempty"`
	Gender     *string `json:"gender,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"`
	Age        *int64  `json:"age,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

func toClientResponse(c *database.Client) clientResponse {
	resp := clientResponse{
		ExternalID: c.ExternalID,
		Name:       c.CleanLabel,
		Level:      c.CurrentLevel,
		LevelRank:  c.CurrentLevelRank,
		Discipline: c.Discipline,
		Gender:     c.Gender,
		BirthDate:  c.BirthDate,
		Age:        c.Age,
		City:       c.City,
		State:      c.State,
		Email:      c.Email,
		Phone:      c.Phone,
	}
	if c.RawLabel != c.CleanLabel {
		resp.RawName = c.RawLabel
	}
	return resp
}

type historyEntryResponse struct {
	EventDate  string `json:"event_date"`
	Level      string `json:"level"`
	LevelRank  int64  `json:"level_rank"`
	Origin     string `json:"origin"`
	RecordedAt int64  `json:"recorded_at"`
}

// HandleClients handles GET /clients
// Query parameters:
//   - limit: Maximum clients to return (default: 100, max: 1000)
//   - offset: Number of clients to skip (default: 0)
//
// Authentication: Requires Authorization header
func (h *ClientsHandler) HandleClients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !authorized(r, h.config) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	clients, err := h.db.ListClients(offset, limit)
	if err != nil {
		h.logger.Error("Failed to list clients", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	total, err := h.db.CountClients()
	if err != nil {
		h.logger.Error("Failed to count clients", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"clients": out,
		"total":   total,
	}); err != nil {
		h.logger.Error("Failed to encode clients response", "error", err)
	}
}

// HandleClientHistory handles GET /clients/{id}/history
//
// Authentication: Requires Authorization header
func (h *ClientsHandler) HandleClientHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !authorized(r, h.config) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	externalID := r.PathValue("id")
	if externalID == "" {
		http.Error(w, "Missing client id", http.StatusBadRequest)
		return
	}

	client, err := h.db.GetClient(externalID)
	if err != nil {
		h.logger.Error("Failed to get client", "external_id", externalID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if client == nil {
		http.Error(w, "Client not found", http.StatusNotFound)
		return
	}

	entries, err := h.db.GetLevelHistory(externalID)
	if err != nil {
		h.logger.Error("Failed to get level history", "external_id", externalID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	history := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		history = append(history, historyEntryResponse{
			EventDate:  e.EventDate,
			Level:      e.Level,
			LevelRank:  e.LevelRank,
			Origin:     e.Origin,
			RecordedAt: e.RecordedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"client":  toClientResponse(client),
		"history": history,
	}); err != nil {
		h.logger.Error("Failed to encode history response", "error", err)
	}
}

// HandleLevelChanges handles GET /level-changes
// Query parameters:
//   - since: ISO date; only transitions dated on or after it (default: last 30 days)
//
// Authentication: Requires Authorization header
func (h *ClientsHandler) HandleLevelChanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !authorized(r, h.config) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	since := r.URL.Query().Get("since")
	if since == "" {
		since = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", since); err != nil {
		http.Error(w, "Invalid since parameter", http.StatusBadRequest)
		return
	}

	changes, err := h.db.GetRecentLevelChanges(since, h.config.HistoryActivationDate)
	if err != nil {
		h.logger.Error("Failed to get level changes", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]interface{}, 0, len(changes))
	for _, c := range changes {
		out = append(out, map[string]interface{}{
			"external_id":    c.ClientExternalID,
			"name":           c.ClientLabel,
			"event_date":     c.EventDate,
			"level":          c.Level,
			"previous_level": c.PreviousLevel,
			"origin":         c.Origin,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"since":   since,
		"changes": out,
	}); err != nil {
		h.logger.Error("Failed to encode level changes response", "error", err)
	}
}

// parsePagination reads limit/offset query parameters, writing a 400 on
// invalid values
func parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	query := r.URL.Query()

	limit = 100
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			http.Error(w, "Invalid limit parameter", http.StatusBadRequest)
			return 0, 0, false
		}
		if limit < 1 || limit > 1000 {
			http.Error(w, "Limit must be between 1 and 1000", http.StatusBadRequest)
			return 0, 0, false
		}
	}

	offset = 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		var err error
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			http.Error(w, "Invalid offset parameter", http.StatusBadRequest)
			return 0, 0, false
		}
	}

	return limit, offset, true
}
