// Package config builds the process configuration once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	KarakeepAPIKey  string
	KarakeepBaseURL string
	MinifluxAPIKey  string
	MinifluxBaseURL string
	MemoryDBPath    string

	OllamaHost     string
	EmbedModel     string
	EmbedCacheSize int
	Port           string
	AdapterTimeout time.Duration
	RateLimitRPM   int
	LogLevel       string
	LogFormat      string
}

// Error lists every problem found while loading. The process should abort.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

var required = []string{
	"KARAKEEP_API_KEY",
	"KARAKEEP_BASE_URL",
	"MINIFLUX_API_KEY",
	"MINIFLUX_BASE_URL",
	"MEMORY_DB_PATH",
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	orDefault := func(key, def string) string {
		if v := get(key); v != "" {
			return v
		}
		return def
	}

	cfgErr := &Error{}
	for _, key := range required {
		if get(key) == "" {
			cfgErr.Missing = append(cfgErr.Missing, key)
		}
	}

	cfg := &Config{
		KarakeepAPIKey:  get("KARAKEEP_API_KEY"),
		KarakeepBaseURL: strings.TrimRight(get("KARAKEEP_BASE_URL"), "/"),
		MinifluxAPIKey:  get("MINIFLUX_API_KEY"),
		MinifluxBaseURL: strings.TrimRight(get("MINIFLUX_BASE_URL"), "/"),
		MemoryDBPath:    get("MEMORY_DB_PATH"),
		OllamaHost:      strings.TrimRight(orDefault("OLLAMA_HOST", "http://localhost:11434"), "/"),
		EmbedModel:      orDefault("EMBED_MODEL", "nomic-embed-text"),
		Port:            orDefault("PORT", "8990"),
		LogLevel:        strings.ToLower(orDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(orDefault("LOG_FORMAT", "text")),
	}

	timeout, err := time.ParseDuration(orDefault("ADAPTER_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "ADAPTER_TIMEOUT")
	}
	cfg.AdapterTimeout = timeout

	if cfg.RateLimitRPM, err = strconv.Atoi(orDefault("RATE_LIMIT_RPM", "120")); err != nil || cfg.RateLimitRPM < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "RATE_LIMIT_RPM")
	}
	if cfg.EmbedCacheSize, err = strconv.Atoi(orDefault("EMBED_CACHE_SIZE", "256")); err != nil || cfg.EmbedCacheSize < 0 {
		cfgErr.Invalid = append(cfgErr.Invalid, "EMBED_CACHE_SIZE")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, "LOG_LEVEL")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, "LOG_FORMAT")
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return nil, cfgErr
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}
