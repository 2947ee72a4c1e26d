package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Event date policies for level transitions whose date is not supplied
const (
	EventDatePolicyLastSession = "last-session"
	EventDatePolicyToday       = "today"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Database configuration
	DatabasePath string

	// EVO API configuration
	EVOUser      string
	EVOToken     string
	EVOBaseURLV1 string
	EVOBaseURLV2 string
	EVOPageSize  int

	// Sync behavior
	SyncInterval          time.Duration
	StripLevelTokens      bool   // strip recognized level codes from the display name
	HistoryActivationDate string // ISO date; baselines before it stay out of recent-changes
	EventDatePolicy       string
	AgendaLookbackDays    int  // how far back scheduled agenda syncs reach, 0 disables them
	ProfileLevelLookup    bool // fetch the EVO level list when a name has no code (one request per member)

	// Internal API configuration
	InternalAPIKey string

	// Metrics configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables
// It fails fast if required variables are missing
func Load() (*Config, error) {
	cfg := &Config{
		// Optional values with defaults
		Host:                  getEnv("HOST", "localhost"),
		Port:                  getEnvInt("PORT", 4201),
		DatabasePath:          getEnv("DATABASE_PATH", "./bts_clients.db"),
		EVOBaseURLV1:          getEnv("EVO_BASE_URL_V1", "https://evo-integracao.w12app.com.br/api/v1"),
		EVOBaseURLV2:          getEnv("EVO_BASE_URL_V2", "https://evo-integracao-api.w12app.com.br/api/v2"),
		EVOPageSize:           getEnvInt("EVO_PAGE_SIZE", 100),
		SyncInterval:          time.Duration(getEnvInt("SYNC_INTERVAL_MINUTES", 360)) * time.Minute,
		StripLevelTokens:      getEnvBool("STRIP_LEVEL_TOKENS", false),
		HistoryActivationDate: getEnv("HISTORY_ACTIVATION_DATE", ""),
		EventDatePolicy:       getEnv("EVENT_DATE_POLICY", EventDatePolicyLastSession),
		AgendaLookbackDays:    getEnvInt("AGENDA_LOOKBACK_DAYS", 7),
		ProfileLevelLookup:    getEnvBool("PROFILE_LEVEL_LOOKUP", false),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", false),
		MetricsHost:           getEnv("METRICS_HOST", "localhost"),
		MetricsPort:           getEnvInt("METRICS_PORT", 4202),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}

	// Required values
	var missingVars []string

	cfg.EVOUser = os.Getenv("EVO_USER")
	if cfg.EVOUser == "" {
		missingVars = append(missingVars, "EVO_USER")
	}

	cfg.EVOToken = os.Getenv("EVO_TOKEN")
	if cfg.EVOToken == "" {
		missingVars = append(missingVars, "EVO_TOKEN")
	}

	cfg.InternalAPIKey = os.Getenv("INTERNAL_API_KEY")
	if cfg.InternalAPIKey == "" {
		missingVars = append(missingVars, "INTERNAL_API_KEY")
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if cfg.EventDatePolicy != EventDatePolicyLastSession && cfg.EventDatePolicy != EventDatePolicyToday {
		return nil, fmt.Errorf("invalid EVENT_DATE_POLICY: %q (want %q or %q)",
			cfg.EventDatePolicy, EventDatePolicyLastSession, EventDatePolicyToday)
	}

	if cfg.HistoryActivationDate != "" {
		if _, err := time.Parse("2006-01-02", cfg.HistoryActivationDate); err != nil {
			return nil, fmt.Errorf("invalid HISTORY_ACTIVATION_DATE: %w", err)
		}
	}

	if cfg.EVOPageSize < 1 || cfg.EVOPageSize > 100 {
		cfg.EVOPageSize = 100 // EVO caps take at 100
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
