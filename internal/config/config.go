package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"immo-backoffice/internal/matching"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Matching  MatchingConfig  `yaml:"matching"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port        string   `yaml:"port"`
	Environment string   `yaml:"environment"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	// Type is one of mysql, postgres, sqlite (gorm) or postgres-raw (lib/pq)
	Type     string         `yaml:"type"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	// SQLitePath is the database file used when Type is sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// RedisConfig contains the match cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// AuthConfig contains JWT verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// MatchingConfig tunes the matching engine
type MatchingConfig struct {
	Weights         matching.Weights `yaml:"weights"`
	VolumeTolerance float64          `yaml:"volume_tolerance"`
	MinScore        float64          `yaml:"min_score"`
	RecordSnapshots bool             `yaml:"record_snapshots"`
}

// SchedulerConfig contains cron settings
type SchedulerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ReindexSpec    string `yaml:"reindex_spec"`
	DashboardSpec  string `yaml:"dashboard_spec"`
	CleanupSpec    string `yaml:"cleanup_spec"`
	JobTimeoutSecs int    `yaml:"job_timeout_seconds"`
}

// RateLimitConfig contains per-caller rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// CleanupConfig contains snapshot retention settings
type CleanupConfig struct {
	RetentionDays    int `yaml:"retention_days"`
	MaxDeletionCount int `yaml:"max_deletion_count"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Environment: "development",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Type: "postgres",
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{Index: "objekte"},
		},
		Redis: RedisConfig{
			TTLSeconds: 300,
		},
		Matching: MatchingConfig{
			Weights:         matching.DefaultWeights(),
			RecordSnapshots: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:        false,
			ReindexSpec:    "0 3 * * *",
			DashboardSpec:  "*/15 * * * *",
			CleanupSpec:    "30 3 * * 0",
			JobTimeoutSecs: 600,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
		Cleanup: CleanupConfig{
			RetentionDays:    180,
			MaxDeletionCount: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Timezone: "Europe/Berlin",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values the application cannot start without
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres", "postgres-raw", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Matching.VolumeTolerance < 0 {
		return fmt.Errorf("matching.volume_tolerance must not be negative")
	}
	if c.Matching.MinScore < 0 || c.Matching.MinScore > 1 {
		return fmt.Errorf("matching.min_score must be within [0,1]")
	}
	w := c.Matching.Weights
	if w.Volume < 0 || w.AssetClass < 0 || w.Region < 0 || w.Yield < 0 {
		return fmt.Errorf("matching.weights must not be negative")
	}
	return nil
}

// EngineOptions converts the matching section into engine options
func (c *MatchingConfig) EngineOptions() matching.Options {
	opts := matching.DefaultOptions()
	if c.Weights != (matching.Weights{}) {
		opts.Weights = c.Weights
	}
	opts.VolumeTolerance = c.VolumeTolerance
	opts.MinScore = c.MinScore
	return opts
}

// GetTTL returns the cache TTL as a duration
func (c *RedisConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// GetJobTimeout returns the job timeout as a duration
func (c *SchedulerConfig) GetJobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSecs) * time.Second
}
