// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config holds runtime settings for the task service.
type Config struct {
	Port            string
	Debug           bool
	LogFormat       string
	SeedSampleTasks bool
	RedisConn       string
	CacheTTL        time.Duration
	DeduperTTL      time.Duration
	EventsChannel   string
	KeyPrefix       string
	MaxBodyBytes    int64
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		Port:            "5001",
		LogFormat:       "text",
		SeedSampleTasks: true,
		CacheTTL:        time.Minute,
		DeduperTTL:      24 * time.Hour,
		EventsChannel:   "task-events",
		KeyPrefix:       "tasks-api",
		MaxBodyBytes:    64 * 1024,
	}
}

// Load reads .env files (if present) into the process environment and builds
// the configuration from it. Variables already set take precedence.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration using lookup to read variables.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return Config{}, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = v
	}
	if v, ok := get("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	if v, ok := get("LOG_FORMAT"); ok {
		switch strings.ToLower(v) {
		case "text", "json":
			cfg.LogFormat = strings.ToLower(v)
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", v)
		}
	}
	if v, ok := get("SEED_SAMPLE_TASKS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SEED_SAMPLE_TASKS: %w", err)
		}
		cfg.SeedSampleTasks = b
	}
	if v, ok := get("REDIS_CONNECTION_STRING"); ok {
		cfg.RedisConn = v
	}
	if v, ok := get("TASKS_CACHE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid TASKS_CACHE_TTL %q", v)
		}
		cfg.CacheTTL = d
	}
	if v, ok := get("DEDUPER_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid DEDUPER_TTL %q", v)
		}
		cfg.DeduperTTL = d
	}
	if v, ok := get("TASK_EVENTS_CHANNEL"); ok {
		cfg.EventsChannel = v
	}
	if v, ok := get("REDIS_KEY_PREFIX"); ok {
		cfg.KeyPrefix = v
	}
	if v, ok := get("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid MAX_BODY_BYTES %q", v)
		}
		cfg.MaxBodyBytes = n
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	return ":" + c.Port
}

// RedisEnabled reports whether the Redis-backed layers should be wired.
func (c Config) RedisEnabled() bool {
	return c.RedisConn != ""
}

// RedisOptions parses a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	if strings.Contains(conn, "://") {
		return nil, fmt.Errorf("invalid redis url %q", conn)
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
