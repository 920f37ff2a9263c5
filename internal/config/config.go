// Package config loads team-memory settings from a YAML file, then applies
// TEAM_MEMORY_* environment overrides on top of defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/team-memory/internal/auth"
	"github.com/rcliao/team-memory/internal/model"
)

// Config holds all settings.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	// TTLDays maps memory type to default retention in days.
	TTLDays map[string]int `yaml:"ttl_days"`
	Context ContextConfig  `yaml:"context"`
	Tokens  TokensConfig   `yaml:"tokens"`
	Log     LogConfig      `yaml:"log"`
	Audit   AuditConfig    `yaml:"audit"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type AuthConfig struct {
	Require               bool   `yaml:"require"`
	AdminKey              string `yaml:"admin_key"`
	OwnerlessModifiable   bool   `yaml:"ownerless_modifiable"`
	OwnerlessSupersedable bool   `yaml:"ownerless_supersedable"`
	// APIKey is the key the CLI and MCP server act with.
	APIKey string `yaml:"api_key"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ContextConfig struct {
	DefaultMaxTokens int `yaml:"default_max_tokens"`
	CandidateWindow  int `yaml:"candidate_window"`
}

type TokensConfig struct {
	Encoding string `yaml:"encoding"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuditConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(home, ".team-memory", "memory.db"),
		},
		Server: ServerConfig{Bind: "127.0.0.1", Port: 8000},
		Auth:   AuthConfig{OwnerlessSupersedable: true},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
		},
		TTLDays: map[string]int{
			string(model.TypeDecision):  365,
			string(model.TypeWork):      30,
			string(model.TypeKnowledge): 365,
			string(model.TypeTodo):      30,
		},
		Context: ContextConfig{DefaultMaxTokens: 2000, CandidateWindow: 20},
		Tokens:  TokensConfig{Encoding: "cl100k_base"},
		Log:     LogConfig{Level: "info"},
		Audit:   AuditConfig{QueueSize: 256},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	if env := os.Getenv("TEAM_MEMORY_CONFIG"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".team-memory", "config.yaml")
}

// Load reads path (a missing file at the default path is not an error),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("TEAM_MEMORY_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("TEAM_MEMORY_DB", c.Database.DSN)
	c.Server.Bind = getEnv("TEAM_MEMORY_BIND", c.Server.Bind)
	c.Server.Port = getEnvInt("TEAM_MEMORY_PORT", c.Server.Port)
	c.Auth.Require = getEnvBool("TEAM_MEMORY_REQUIRE_AUTH", c.Auth.Require)
	c.Auth.AdminKey = getEnv("TEAM_MEMORY_ADMIN_KEY", c.Auth.AdminKey)
	c.Auth.APIKey = getEnv("TEAM_MEMORY_API_KEY", c.Auth.APIKey)
	c.RateLimit.Requests = getEnvInt("TEAM_MEMORY_RATE_LIMIT", c.RateLimit.Requests)
	c.Log.Level = getEnv("TEAM_MEMORY_LOG_LEVEL", c.Log.Level)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Context.DefaultMaxTokens < 0 {
		return errors.New("config: context.default_max_tokens must be >= 0")
	}
	if c.Context.CandidateWindow <= 0 {
		return errors.New("config: context.candidate_window must be > 0")
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Window < 0 {
		return errors.New("config: rate_limit values must be >= 0")
	}
	for typ, days := range c.TTLDays {
		if _, err := model.ParseType(typ); err != nil {
			return fmt.Errorf("config: ttl_days: %w", err)
		}
		if days <= 0 {
			return fmt.Errorf("config: ttl_days.%s must be > 0", typ)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// fallbackTTLDays applies to types missing from the table.
const fallbackTTLDays = 30

// TTL returns the default retention for a memory type.
func (c *Config) TTL(t model.Type) time.Duration {
	days, ok := c.TTLDays[string(t)]
	if !ok {
		days = fallbackTTLDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// AuthPolicy converts the auth section into a gate policy.
func (c *Config) AuthPolicy() auth.Policy {
	return auth.Policy{
		Required:              c.Auth.Require,
		AdminKey:              c.Auth.AdminKey,
		OwnerlessModifiable:   c.Auth.OwnerlessModifiable,
		OwnerlessSupersedable: c.Auth.OwnerlessSupersedable,
	}
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return l, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		switch strings.ToLower(value) {
		case "yes":
			return true
		case "no":
			return false
		}
	}
	return defaultValue
}
