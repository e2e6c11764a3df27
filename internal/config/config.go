// Package config loads runtime configuration from the environment
// variables named verbatim in spec §6.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the vault service.
type Config struct {
	Port        string
	MongoURI    string
	MongoDBName string

	JWTSecret    string
	JWTExpiresIn time.Duration

	UploadPath           string
	MaxFileSize          int64
	MaxConcurrentUploads int

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	NodeEnv     string
	FrontendURL string
}

// Load reads configuration from the environment, falling back to
// development-friendly defaults for anything unset.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "5000"),
		MongoURI:    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGODB_DB", "securevault"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTExpiresIn: getDuration("JWT_EXPIRES_IN", 7*24*time.Hour),

		UploadPath:           getEnv("UPLOAD_PATH", "./uploads"),
		MaxFileSize:          getInt64("MAX_FILE_SIZE", 150<<20),
		MaxConcurrentUploads: int(getInt64("MAX_CONCURRENT_UPLOADS", 256)),

		RateLimitWindow:      getMillisDuration("RATE_LIMIT_WINDOW_MS", 15*time.Minute),
		RateLimitMaxRequests: int(getInt64("RATE_LIMIT_MAX_REQUESTS", 100)),

		NodeEnv:     getEnv("NODE_ENV", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// getDuration parses values like "7d", "24h", "30m" — the shorthand the
// spec's JWT_EXPIRES_IN default ("7d") uses, which time.ParseDuration does
// not itself understand.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if len(v) > 1 && v[len(v)-1] == 'd' {
		days, err := strconv.Atoi(v[:len(v)-1])
		if err != nil {
			return fallback
		}
		return time.Duration(days) * 24 * time.Hour
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getMillisDuration(key string, fallback time.Duration) time.Duration {
	ms := getInt64(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
