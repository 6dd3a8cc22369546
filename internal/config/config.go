// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken string
	AllowedUserID int64
	Environment   string
	PicDir        string
	DBPath        string
	LogLevel      slog.Level
	WorkerPool    int
	Agent         AgentConfig
	Schedule      ScheduleConfig
	Admin         AdminConfig
}

// AgentConfig controls the outbound connection to the remote agent.
type AgentConfig struct {
	BaseURL        string
	APIKey         string
	LifetimeHours  int
	RequestTimeout time.Duration
}

// ScheduleConfig controls recurring job defaults.
type ScheduleConfig struct {
	InitialDelay  time.Duration
	MaxConcurrent int
}

// AdminConfig controls the optional admin HTTP server.
type AdminConfig struct {
	Port  string // empty disables the server
	Token string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	userID, err := getEnvInt64("MY_USER_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		TelegramToken: strings.TrimSpace(getEnv("TELEGRAM_TOKEN", "")),
		AllowedUserID: userID,
		Environment:   getEnv("ENVIRONMENT", "dev"),
		PicDir:        getEnv("PIC_DIR", "pic"),
		DBPath:        getEnv("DB_PATH", "./data/bot.db"),
		LogLevel:      getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		WorkerPool:    getEnvInt("WORKER_POOL_SIZE", 4),
		Agent: AgentConfig{
			BaseURL:        strings.TrimRight(getEnv("AGENT_BASE_URL", "http://localhost:50001"), "/"),
			APIKey:         getEnv("AGENT_API_KEY", ""),
			LifetimeHours:  getEnvInt("AGENT_LIFETIME_HOURS", 24),
			RequestTimeout: getEnvDuration("AGENT_REQUEST_TIMEOUT", 10*time.Minute),
		},
		Schedule: ScheduleConfig{
			InitialDelay:  getEnvDuration("SCHEDULE_INITIAL_DELAY", 5*time.Second),
			MaxConcurrent: getEnvInt("SCHEDULE_MAX_CONCURRENT", 2),
		},
		Admin: AdminConfig{
			Port:  getEnv("ADMIN_PORT", ""),
			Token: getEnv("ADMIN_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN cannot be empty")
	}
	if c.AllowedUserID == 0 {
		return fmt.Errorf("MY_USER_ID cannot be empty")
	}
	if c.Agent.BaseURL == "" {
		return fmt.Errorf("AGENT_BASE_URL cannot be empty")
	}
	if c.Agent.LifetimeHours <= 0 {
		return fmt.Errorf("AGENT_LIFETIME_HOURS must be > 0")
	}
	if c.PicDir == "" {
		return fmt.Errorf("PIC_DIR cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.WorkerPool <= 0 {
		return fmt.Errorf("WORKER_POOL_SIZE must be > 0")
	}
	if c.Schedule.MaxConcurrent <= 0 {
		return fmt.Errorf("SCHEDULE_MAX_CONCURRENT must be > 0")
	}
	if c.Schedule.InitialDelay < 0 {
		return fmt.Errorf("SCHEDULE_INITIAL_DELAY cannot be negative")
	}
	if c.AdminEnabled() && c.Admin.Token == "" {
		return fmt.Errorf("ADMIN_TOKEN is required when ADMIN_PORT is set")
	}
	return nil
}

// AdminEnabled reports whether the admin HTTP server should start.
func (c *Config) AdminEnabled() bool {
	return c.Admin.Port != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvInt64 is strict: a malformed identity must not silently fall back.
func getEnvInt64(key string, fallback int64) (int64, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
