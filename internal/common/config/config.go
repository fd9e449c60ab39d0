// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects and configures the persistence backends.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // "sqlite" or "airtable"
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Airtable AirtableConfig `mapstructure:"airtable"`
	Postgres PostgresConfig `mapstructure:"postgres"` // interview research store
	Redis    RedisConfig    `mapstructure:"redis"`    // remote backend lookup cache
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type AirtableConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseID  string `mapstructure:"base_id"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AnthropicConfig holds settings for the completion service.
type AnthropicConfig struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxTokens           int    `mapstructure:"max_tokens"`
	TranscriptMaxTokens int    `mapstructure:"transcript_max_tokens"`
	Timeout             int    `mapstructure:"timeout"` // milliseconds
}

// ClassifierConfig holds the batch classification knobs.
type ClassifierConfig struct {
	Concurrency        int `mapstructure:"concurrency"`
	MaxRetries         int `mapstructure:"max_retries"`
	BackoffBase        int `mapstructure:"backoff_base"` // milliseconds
	BackoffMax         int `mapstructure:"backoff_max"`  // milliseconds
	PromptContentLimit int `mapstructure:"prompt_content_limit"`
	SnippetLength      int `mapstructure:"snippet_length"`
	TranscriptLimit    int `mapstructure:"transcript_limit"`
}

// MetricsConfig holds settings for the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
