// Package config loads application configuration from environment
// variables; command line flags take precedence where the CLI defines
// them.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	EngineURL         string
	ChainEndpoints    []string
	CoinGeckoURL      string
	DatabaseURL       string
	EngineRetryMax    int
	EngineRetryDelay  time.Duration
	CoinGeckoDelay    time.Duration
	CoinGeckoRetryMax int
	CacheDir          string
	CacheTTL          time.Duration
	SnapshotsDir      string
	ReportInterval    time.Duration
	SpreadsheetID     string
	SheetsCredentials string
	XLSXPath          string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		EngineURL:         envOrDefault("ENGINE_URL", "https://api.hive-engine.com/rpc/contracts"),
		ChainEndpoints:    envOrDefaultList("CHAIN_ENDPOINTS", nil),
		CoinGeckoURL:      envOrDefault("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		DatabaseURL:       envOrDefault("DATABASE_URL", ""),
		EngineRetryMax:    envOrDefaultInt("ENGINE_RETRY_MAX", 10),
		EngineRetryDelay:  envOrDefaultDuration("ENGINE_RETRY_DELAY", 2*time.Second),
		CoinGeckoDelay:    envOrDefaultDuration("COINGECKO_DELAY", 6*time.Second),
		CoinGeckoRetryMax: envOrDefaultInt("COINGECKO_RETRY_MAX", 5),
		CacheDir:          envOrDefault("CACHE_DIR", ".cache"),
		CacheTTL:          envOrDefaultDuration("CACHE_TTL", 15*time.Minute),
		SnapshotsDir:      envOrDefault("SNAPSHOTS_DIR", "snapshots"),
		ReportInterval:    envOrDefaultDuration("REPORT_INTERVAL", 24*time.Hour),
		SpreadsheetID:     envOrDefault("SPREADSHEET_ID", ""),
		SheetsCredentials: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		XLSXPath:          envOrDefault("XLSX_PATH", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
