package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
	if cfg.ListenAddr() != ":5001" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
	if cfg.RedisEnabled() {
		t.Fatalf("redis must be disabled by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"PORT":                    "8080",
		"DEBUG":                   "true",
		"LOG_FORMAT":              "JSON",
		"SEED_SAMPLE_TASKS":       "false",
		"REDIS_CONNECTION_STRING": "redis://localhost:6379/0",
		"TASKS_CACHE_TTL":         "0s",
		"DEDUPER_TTL":             "2h",
		"TASK_EVENTS_CHANNEL":     "events",
		"REDIS_KEY_PREFIX":        "dev",
		"MAX_BODY_BYTES":          "1024",
	}))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	want := Config{
		Port:            "8080",
		Debug:           true,
		LogFormat:       "json",
		SeedSampleTasks: false,
		RedisConn:       "redis://localhost:6379/0",
		CacheTTL:        0,
		DeduperTTL:      2 * time.Hour,
		EventsChannel:   "events",
		KeyPrefix:       "dev",
		MaxBodyBytes:    1024,
	}
	if cfg != want {
		t.Fatalf("unexpected config:\n got %#v\nwant %#v", cfg, want)
	}
}

func TestFromEnvBlankValuesKeepDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{"PORT": "  ", "DEBUG": ""}))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "5001" || cfg.Debug {
		t.Fatalf("expected defaults for blank values, got %#v", cfg)
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port_text":     {"PORT": "http"},
		"port_range":    {"PORT": "70000"},
		"debug":         {"DEBUG": "maybe"},
		"log_format":    {"LOG_FORMAT": "xml"},
		"seed":          {"SEED_SAMPLE_TASKS": "sometimes"},
		"cache_ttl":     {"TASKS_CACHE_TTL": "-1m"},
		"deduper_ttl":   {"DEDUPER_TTL": "0s"},
		"max_body":      {"MAX_BODY_BYTES": "-5"},
		"max_body_text": {"MAX_BODY_BYTES": "lots"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromEnv(lookupFrom(env)); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TASK_EVENTS_CHANNEL=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("TASK_EVENTS_CHANNEL", "")
	os.Unsetenv("TASK_EVENTS_CHANNEL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EventsChannel != "from-file" {
		t.Fatalf("expected value from env file, got %q", cfg.EventsChannel)
	}
}

func TestLoadMissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("expected missing env file to be ignored, got %v", err)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions("redis://:secret@localhost:6380/2")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected url options: %#v", opts)
	}

	opts, err = RedisOptions("cache.example.net:6380,password=abc=,ssl=True,abortConnect=False")
	if err != nil {
		t.Fatalf("parse azure string: %v", err)
	}
	if opts.Addr != "cache.example.net:6380" || opts.Password != "abc=" || opts.TLSConfig == nil {
		t.Fatalf("unexpected azure options: %#v", opts)
	}

	opts, err = RedisOptions("localhost:6379")
	if err != nil || opts.Addr != "localhost:6379" || opts.TLSConfig != nil {
		t.Fatalf("unexpected plain options: %#v err=%v", opts, err)
	}

	if _, err := RedisOptions(""); err == nil {
		t.Fatalf("expected error for empty connection string")
	}
	if _, err := RedisOptions("http://localhost:6379"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
