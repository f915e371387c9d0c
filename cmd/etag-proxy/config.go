package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

// config is read from the environment; flags override it.
type config struct {
	Port       string
	Upstream   string
	UserAgent  string
	Token      string
	Store      string
	RedisURL   string
	SQLitePath string
	LogLevel   string
	LogPretty  bool
	Timeout    time.Duration
}

func configFromEnv() config {
	return config{
		Port:       getEnv("PORT", "8080"),
		Upstream:   getEnv("UPSTREAM", "https://api.github.com"),
		UserAgent:  getEnv("USER_AGENT", "gh-etag-cache/0.1.0"),
		Token:      os.Getenv("GITHUB_TOKEN"),
		Store:      getEnv("STORE", storeMemory),
		RedisURL:   getEnv("REDIS_URL", "localhost:6379"),
		SQLitePath: getEnv("SQLITE_PATH", "data/etags.db"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvBool("LOG_PRETTY", false),
		Timeout:    30 * time.Second,
	}
}

// bindFlags registers flags defaulting to the environment values in cfg.
func bindFlags(cmd *cobra.Command, cfg *config) {
	flags := cmd.Flags()
	flags.StringVar(&cfg.Port, "port", cfg.Port, "listen port (PORT)")
	flags.StringVar(&cfg.Upstream, "upstream", cfg.Upstream, "GitHub API base URL (UPSTREAM)")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent sent to GitHub (USER_AGENT)")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "etag store backend: memory, redis or sqlite (STORE)")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis address or redis:// URL (REDIS_URL)")
	flags.StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "sqlite database file (SQLITE_PATH)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (LOG_LEVEL)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs (LOG_PRETTY)")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "upstream request timeout")
}

func (c config) validate() error {
	switch c.Store {
	case storeMemory, storeRedis, storeSQLite:
	default:
		return fmt.Errorf("unknown store %q (want memory, redis or sqlite)", c.Store)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user-agent is required")
	}
	if c.Upstream == "" {
		return fmt.Errorf("upstream is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
