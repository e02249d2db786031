package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort string
	LogLevel string

	// data source
	DataOrigin         string
	SportAPIURL        string
	UpstreamTimeout    time.Duration
	UpstreamRetries    int
	UpstreamRetryDelay time.Duration
	BreakerThreshold   int
	BreakerTimeout     time.Duration
	RawCacheTTL        time.Duration
	BoardTTL           time.Duration
	MaxBoards          int

	// redis response cache and rate limiter
	RedisEnabled     bool
	RedisAddr        string
	ResponseCacheTTL time.Duration
	RateLimitMax     int
	RateLimitWindow  time.Duration

	// cmd/sport-api
	SportAPIPort string
}

func NewConfig() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataOrigin:         getEnv("DATA_ORIGIN", "mock"),
		SportAPIURL:        strings.TrimRight(getEnv("SPORT_API_URL", "http://localhost:3000"), "/"),
		UpstreamTimeout:    getDurationEnv("UPSTREAM_TIMEOUT", 5*time.Second),
		UpstreamRetries:    getIntEnv("UPSTREAM_RETRIES", 3),
		UpstreamRetryDelay: getDurationEnv("UPSTREAM_RETRY_DELAY", 500*time.Millisecond),
		BreakerThreshold:   getIntEnv("BREAKER_THRESHOLD", 3),
		BreakerTimeout:     getDurationEnv("BREAKER_TIMEOUT", 10*time.Second),
		RawCacheTTL:        getDurationEnv("RAW_CACHE_TTL", 0),
		BoardTTL:           getDurationEnv("BOARD_TTL", time.Minute),
		MaxBoards:          getIntEnv("MAX_BOARDS", 1000),

		RedisEnabled:     getBoolEnv("REDIS_ENABLED", true),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		ResponseCacheTTL: getDurationEnv("RESPONSE_CACHE_TTL", 30*time.Second),
		RateLimitMax:     getIntEnv("RATE_LIMIT_MAX", 10),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),

		SportAPIPort: getEnv("SPORT_API_PORT", "3000"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
