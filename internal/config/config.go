package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	// APIBaseURL is the single base URL of the remote weather data API.
	APIBaseURL string

	HTTPTimeout     time.Duration
	DownloadTimeout time.Duration

	// UpstreamMaxRetries is 0 by default; user actions are never retried automatically.
	UpstreamMaxRetries int

	// StationRefreshInterval controls how often station catalogs are reloaded.
	StationRefreshInterval time.Duration

	// Session retention.
	SessionMaxAge   time.Duration
	SessionMaxCount int

	// Location is the civil timezone used for "today" and date boundaries.
	Location *time.Location

	// ReportingLagDays is how many days behind today the newest record may be.
	ReportingLagDays int

	LogLevel  slog.Level
	LogFormat string

	Port string
}

// Load reads configuration from environment with sensible defaults.
// Callers are expected to have loaded any .env file beforehand.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.APIBaseURL = strings.TrimRight(getenvDefault("API_BASE_URL", "http://weather-rda.digitalag.kr:8001"), "/")
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("invalid API_BASE_URL: %q must start with http:// or https://", cfg.APIBaseURL)
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout, err = getenvDuration("DOWNLOAD_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.StationRefreshInterval, err = getenvDuration("STATION_REFRESH_INTERVAL", "30m"); err != nil {
		return nil, err
	}
	if cfg.SessionMaxAge, err = getenvDuration("SESSION_MAX_AGE", "2h"); err != nil {
		return nil, err
	}

	cfg.UpstreamMaxRetries = getenvInt("UPSTREAM_MAX_RETRIES", 0)
	if cfg.UpstreamMaxRetries < 0 {
		return nil, fmt.Errorf("invalid UPSTREAM_MAX_RETRIES: must be >= 0")
	}
	cfg.SessionMaxCount = getenvInt("SESSION_MAX_COUNT", 1000)
	cfg.ReportingLagDays = getenvInt("REPORTING_LAG_DAYS", 2)
	if cfg.ReportingLagDays < 0 {
		return nil, fmt.Errorf("invalid REPORTING_LAG_DAYS: must be >= 0")
	}

	tz := getenvDefault("TIMEZONE", "Asia/Seoul")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q (want json or text)", cfg.LogFormat)
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
