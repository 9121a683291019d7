package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	OriginURL     string
	OriginTimeout time.Duration

	CacheName    string
	CacheVersion string
	CacheBackend string
	CachePath    string
	RedisAddr    string

	PostgresDSN string

	APIPrefix string
	Precache  []string
	SyncTag   string

	ProbePath     string
	ProbeInterval time.Duration

	FeedEnabled   bool
	FeedPath      string
	FeedRetryBase time.Duration
	FeedRetryMax  time.Duration

	ActivationPoll  time.Duration
	ShutdownTimeout time.Duration

	AdminKey string
}

func Load() Config {
	return Config{
		HTTPAddr:        envOrDefault("GATEWAY_HTTP_ADDR", ":8080"),
		ReadTimeout:     durationOrDefault("GATEWAY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    durationOrDefault("GATEWAY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     durationOrDefault("GATEWAY_IDLE_TIMEOUT", 60*time.Second),
		OriginURL:       envOrDefault("GATEWAY_ORIGIN_URL", "http://127.0.0.1:5000"),
		OriginTimeout:   durationOrDefault("GATEWAY_ORIGIN_TIMEOUT", 20*time.Second),
		CacheName:       envOrDefault("GATEWAY_CACHE_NAME", "attendance-tracker"),
		CacheVersion:    envOrDefault("GATEWAY_CACHE_VERSION", "v1.0.0"),
		CacheBackend:    normalizeCacheBackend(os.Getenv("GATEWAY_CACHE_BACKEND")),
		CachePath:       envOrDefault("GATEWAY_CACHE_PATH", filepath.Join("data", "cache.db")),
		RedisAddr:       envOrDefault("REDIS_ADDR", "127.0.0.1:6379"),
		PostgresDSN:     strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		APIPrefix:       normalizeAPIPrefix(os.Getenv("GATEWAY_API_PREFIX")),
		Precache:        listOrDefault("GATEWAY_PRECACHE", defaultPrecache()),
		SyncTag:         envOrDefault("GATEWAY_SYNC_TAG", "attendance-sync"),
		ProbePath:       envOrDefault("GATEWAY_PROBE_PATH", "/api/status"),
		ProbeInterval:   durationOrDefault("GATEWAY_PROBE_INTERVAL", 15*time.Second),
		FeedEnabled:     boolOrDefault("GATEWAY_FEED_ENABLED", true),
		FeedPath:        envOrDefault("GATEWAY_FEED_PATH", "/events"),
		FeedRetryBase:   durationOrDefault("GATEWAY_FEED_RETRY_BASE", 1*time.Second),
		FeedRetryMax:    durationOrDefault("GATEWAY_FEED_RETRY_MAX", 30*time.Second),
		ActivationPoll:  durationOrDefault("GATEWAY_ACTIVATION_POLL", 500*time.Millisecond),
		ShutdownTimeout: durationOrDefault("GATEWAY_SHUTDOWN_TIMEOUT", 10*time.Second),
		AdminKey:        strings.TrimSpace(os.Getenv("GATEWAY_ADMIN_KEY")),
	}
}

func defaultPrecache() []string {
	return []string{
		"/",
		"/manifest.json",
		"/static/icon-192.png",
		"/static/icon-512.png",
		"https://cdn.socket.io/4.7.2/socket.io.min.js",
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "bolt":
		return "bolt"
	case "memory":
		return "memory"
	case "redis":
		return "redis"
	default:
		return "bolt"
	}
}

func normalizeAPIPrefix(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "/api/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return trimmed
}

func listOrDefault(key string, fallback []string) []string {
	parsed := parseCSV(os.Getenv(key))
	if len(parsed) == 0 {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func boolOrDefault(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
