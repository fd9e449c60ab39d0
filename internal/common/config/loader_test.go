// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "data/insights.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, "https://api.airtable.com/v0", cfg.Storage.Airtable.BaseURL)
	assert.Equal(t, 30000, cfg.Storage.Airtable.Timeout)

	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Anthropic.Model)
	assert.Equal(t, 1024, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 4096, cfg.Anthropic.TranscriptMaxTokens)

	assert.Equal(t, 5, cfg.Classifier.Concurrency)
	assert.Equal(t, 3, cfg.Classifier.MaxRetries)
	assert.Equal(t, 2000, cfg.Classifier.BackoffBase)
	assert.Equal(t, 10000, cfg.Classifier.BackoffMax)
	assert.Equal(t, 2000, cfg.Classifier.PromptContentLimit)
	assert.Equal(t, 500, cfg.Classifier.SnippetLength)
	assert.Equal(t, 15000, cfg.Classifier.TranscriptLimit)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Classifier.Concurrency = 10
	cfg.Storage.Backend = "airtable"
	applyDefaults(cfg)

	assert.Equal(t, 10, cfg.Classifier.Concurrency)
	assert.Equal(t, "airtable", cfg.Storage.Backend)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name: "airtable requires api key",
			mutate: func(cfg *Config) {
				cfg.Storage.Backend = "airtable"
				cfg.Storage.Airtable.BaseID = "appX"
			},
			wantErr: "api_key",
		},
		{
			name: "airtable requires base id",
			mutate: func(cfg *Config) {
				cfg.Storage.Backend = "airtable"
				cfg.Storage.Airtable.APIKey = "key"
			},
			wantErr: "base_id",
		},
		{
			name: "unknown backend rejected",
			mutate: func(cfg *Config) {
				cfg.Storage.Backend = "dynamo"
			},
			wantErr: "storage.backend",
		},
		{
			name: "concurrency below one rejected",
			mutate: func(cfg *Config) {
				cfg.Classifier.Concurrency = -1
			},
			wantErr: "concurrency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)

			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  name: merchant-insights
  environment: test
storage:
  backend: sqlite
  sqlite:
    path: /tmp/test-insights.db
classifier:
  concurrency: 2
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "merchant-insights", cfg.App.Name)
	assert.Equal(t, "/tmp/test-insights.db", cfg.Storage.SQLite.Path)
	assert.Equal(t, 2, cfg.Classifier.Concurrency)
	// Unset fields pick up defaults.
	assert.Equal(t, 3, cfg.Classifier.MaxRetries)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Anthropic.Model)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, GetDuration(2000))
}
