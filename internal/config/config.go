// Package config loads groupscan configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Transport strategy names.
const (
	TransportBotAPI = "botapi"
	TransportWebApp = "webapp"
)

// Config holds everything the client needs to reach the parser bot and
// manage local state.
type Config struct {
	// APIBaseURL is the parser bot's HTTP endpoint.
	APIBaseURL string
	// Transport selects the call strategy: botapi or webapp.
	Transport string
	// DataDir holds the snapshot, exports and the journal database.
	DataDir string
	// UserID scopes the snapshot when a platform identity is known.
	UserID int64

	// PollInterval is the cadence of status checks while a task runs.
	PollInterval time.Duration
	// ProgressInterval is the cadence of the display-side estimate.
	ProgressInterval time.Duration
	// HoldWindow keeps a terminal task visible before the slot clears.
	HoldWindow time.Duration
	// StatusRetries bounds consecutive transport failures before a
	// running task is failed.
	StatusRetries int

	// ClientTimeout caps each HTTP request under the botapi strategy.
	ClientTimeout time.Duration
	// ChannelTimeout caps how long the webapp strategy waits for a
	// correlated inbound event.
	ChannelTimeout time.Duration

	LogLevel string
}

// Load reads the configuration from the environment. A local .env file
// is honored when present but is never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	homeDir, _ := os.UserHomeDir()

	cfg := &Config{
		APIBaseURL:       getEnv("GROUPSCAN_API_URL", "http://127.0.0.1:8450"),
		Transport:        getEnv("GROUPSCAN_TRANSPORT", TransportBotAPI),
		DataDir:          getEnv("GROUPSCAN_DATA_DIR", filepath.Join(homeDir, ".groupscan")),
		PollInterval:     getDuration("GROUPSCAN_POLL_INTERVAL", 2*time.Second),
		ProgressInterval: getDuration("GROUPSCAN_PROGRESS_INTERVAL", 500*time.Millisecond),
		HoldWindow:       getDuration("GROUPSCAN_HOLD_WINDOW", 3*time.Second),
		StatusRetries:    getInt("GROUPSCAN_STATUS_RETRIES", 3),
		ClientTimeout:    getDuration("GROUPSCAN_CLIENT_TIMEOUT", 10*time.Second),
		ChannelTimeout:   getDuration("GROUPSCAN_CHANNEL_TIMEOUT", 15*time.Second),
		LogLevel:         getEnv("GROUPSCAN_LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("GROUPSCAN_USER_ID"); raw != "" {
		uid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GROUPSCAN_USER_ID %q: %w", raw, err)
		}
		cfg.UserID = uid
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Transport != TransportBotAPI && c.Transport != TransportWebApp {
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportBotAPI, TransportWebApp)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	if c.StatusRetries < 1 {
		return fmt.Errorf("status retries must be at least 1, got %d", c.StatusRetries)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
