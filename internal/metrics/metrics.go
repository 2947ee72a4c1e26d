package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Sync outcomes
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailure = "failure"

	// HTTP endpoints
	EndpointSync         = "sync"
	EndpointClients      = "clients"
	EndpointHistory      = "client_history"
	EndpointLevelChanges = "level_changes"
	EndpointReports      = "reports"
	EndpointHealth       = "health"

	// EVO API operations (label values produced by internal/evo)
	OpListMembers       = "list_members"
	OpGetMemberProfile  = "get_member_profile"
	OpListSchedule      = "list_schedule"
	OpGetScheduleDetail = "get_schedule_detail"

	// Extraction outcomes
	ExtractionHit  = "hit"
	ExtractionMiss = "miss"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"endpoint"},
	)
)

// Sync Metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of full sync runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncMembersProcessed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_members_processed",
			Help:    "Number of members processed per sync run",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	SyncMemberFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_member_failures_total",
			Help: "Total number of member records that failed to sync",
		},
	)

	LevelTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "level_transitions_total",
			Help: "Total number of level transitions recorded",
		},
	)

	LevelExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "level_extractions_total",
			Help: "Total number of level extraction attempts by outcome",
		},
		[]string{"outcome"},
	)

	SyncActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_active",
			Help: "Whether a sync run is currently in progress (1) or not (0)",
		},
	)
)

// EVO API Metrics
var (
	EVOAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evo_api_requests_total",
			Help: "Total number of EVO API requests",
		},
		[]string{"operation", "status_code"},
	)

	EVOAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evo_api_request_duration_seconds",
			Help:    "EVO API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation", "status_code"},
	)
)

// Database Metrics
var (
	ClientsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clients_total",
			Help: "Number of client rows in the database",
		},
	)

	LevelHistoryRowsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "level_history_rows_total",
			Help: "Number of level history rows in the database",
		},
	)
)
