package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SecurityConfig represents security configuration for the HTTP API
type SecurityConfig struct {
	EnableRateLimit       bool
	RateLimitPerSecond    float64
	RateLimitBurst        int
	EnableCORS            bool
	AllowedOrigins        []string
	EnableSecurityHeaders bool
	MaxRequestSize        int64
	EnableRequestID       bool
}

// PlatformConfig holds per-platform fetch settings
type PlatformConfig struct {
	// YouTube Data API v3 key (comment fetching)
	YouTubeAPIKey string
	// Base URL of the local Telegram MTProto bridge
	TelegramBridgeURL string
	// Max post age within which comments are still re-fetched
	TelegramCutoff time.Duration
	YouTubeCutoff  time.Duration
	// Minimum delay enforced between consecutive post fetches
	RequestDelay time.Duration
}

// OracleConfig holds classification oracle settings
type OracleConfig struct {
	// OpenAI-compatible chat completions endpoint (LM Studio style)
	APIURL    string
	BatchSize int
	// Classified comments are flushed to the results store every
	// CheckpointEvery comments
	CheckpointEvery int
	Timeout         time.Duration
}

type Config struct {
	Port               int
	DataDir            string
	CacheTTL           time.Duration
	DefaultPostsLimit  int
	DefaultVideosLimit int
	Platform           PlatformConfig
	Oracle             OracleConfig
	Security           SecurityConfig
}

func Load() *Config {
	return &Config{
		Port:               getEnvAsInt("PORT", 8080),
		DataDir:            getEnv("DATA_DIR", "./data"),
		CacheTTL:           getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		DefaultPostsLimit:  getEnvAsInt("DEFAULT_POSTS_LIMIT", 100),
		DefaultVideosLimit: getEnvAsInt("DEFAULT_VIDEOS_LIMIT", 50),
		Platform: PlatformConfig{
			YouTubeAPIKey:     getEnv("YOUTUBE_API_KEY", ""),
			TelegramBridgeURL: getEnv("TELEGRAM_BRIDGE_URL", "http://localhost:8840"),
			TelegramCutoff:    getEnvAsDuration("TELEGRAM_MAX_POST_AGE", 7*24*time.Hour),
			YouTubeCutoff:     getEnvAsDuration("YOUTUBE_MAX_VIDEO_AGE", 30*24*time.Hour),
			RequestDelay:      getEnvAsDuration("REQUEST_DELAY", 500*time.Millisecond),
		},
		Oracle: OracleConfig{
			APIURL:          getEnv("ORACLE_API_URL", "http://localhost:1234/v1/chat/completions"),
			BatchSize:       getEnvAsInt("ORACLE_BATCH_SIZE", 5),
			CheckpointEvery: getEnvAsInt("ORACLE_CHECKPOINT_EVERY", 100),
			Timeout:         getEnvAsDuration("ORACLE_TIMEOUT", 90*time.Second),
		},
		Security: loadSecurityConfig(),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		EnableRateLimit:       getEnvAsBool("ENABLE_RATE_LIMIT", true),
		RateLimitPerSecond:    getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10.0),
		RateLimitBurst:        getEnvAsInt("RATE_LIMIT_BURST", 20),
		EnableCORS:            getEnvAsBool("ENABLE_CORS", true),
		AllowedOrigins:        getEnvAsStringSlice("ALLOWED_ORIGINS", []string{"*"}),
		EnableSecurityHeaders: getEnvAsBool("ENABLE_SECURITY_HEADERS", true),
		MaxRequestSize:        getEnvAsInt64("MAX_REQUEST_SIZE", 10<<20), // 10MB
		EnableRequestID:       getEnvAsBool("ENABLE_REQUEST_ID", true),
	}
}

func getEnv(key string, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultVal
}
