// Package config provides configuration loading from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for storage and search limits.
const (
	DefaultMaxSessions      = 10000
	DefaultSearchMaxResults = 100
	DefaultCacheMaxItems    = 512
	DefaultDecodeWorkers    = 8
)

// Config holds all configuration for the session engine.
type Config struct {
	BaseDir          string        // WIRECAP_DIR, default "./sessions"
	FileFormat       string        // WIRECAP_FORMAT, "json" or "plist", default "json"
	MaxSessions      int           // WIRECAP_MAX_SESSIONS, 0 disables the cap
	RetentionPeriod  time.Duration // WIRECAP_RETENTION_MS, 0 disables retention
	SearchTimeout    time.Duration // WIRECAP_SEARCH_TIMEOUT_MS, 0 disables the timeout
	SearchMaxResults int           // WIRECAP_SEARCH_MAX_RESULTS
	CacheMaxItems    int           // WIRECAP_CACHE_MAX_ITEMS
	DecodeWorkers    int           // WIRECAP_DECODE_WORKERS, parallel decodes in LoadAll
	ValidateImports  bool          // WIRECAP_VALIDATE_IMPORTS, schema-check import files

	// Logging configuration
	LogLevel      string // LOG_LEVEL, default "info"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    // LOG_MAX_SIZE_MB
	LogMaxBackups int    // LOG_MAX_BACKUPS
	LogMaxAgeDays int    // LOG_MAX_AGE_DAYS
	LogCompress   bool   // LOG_COMPRESS
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		BaseDir:          getEnvString("WIRECAP_DIR", "./sessions"),
		FileFormat:       getEnvString("WIRECAP_FORMAT", "json"),
		MaxSessions:      getEnvInt("WIRECAP_MAX_SESSIONS", DefaultMaxSessions),
		RetentionPeriod:  getEnvDurationMs("WIRECAP_RETENTION_MS", 0),
		SearchTimeout:    getEnvDurationMs("WIRECAP_SEARCH_TIMEOUT_MS", 0),
		SearchMaxResults: getEnvInt("WIRECAP_SEARCH_MAX_RESULTS", DefaultSearchMaxResults),
		CacheMaxItems:    getEnvInt("WIRECAP_CACHE_MAX_ITEMS", DefaultCacheMaxItems),
		DecodeWorkers:    getEnvInt("WIRECAP_DECODE_WORKERS", DefaultDecodeWorkers),
		ValidateImports:  getEnvBool("WIRECAP_VALIDATE_IMPORTS", true),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}
