// internal/classifier/config.go
package classifier

import (
	"time"

	"merchant-insights/internal/common/config"
)

type Config struct {
	Concurrency        int
	MaxRetries         int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	PromptContentLimit int
	SnippetLength      int
	TranscriptLimit    int
	MaxTokens          int
	TranscriptTokens   int
}

// FromAppConfig maps the application config sections into the engine config.
func FromAppConfig(cfg *config.Config) Config {
	return Config{
		Concurrency:        cfg.Classifier.Concurrency,
		MaxRetries:         cfg.Classifier.MaxRetries,
		BackoffBase:        config.GetDuration(cfg.Classifier.BackoffBase),
		BackoffMax:         config.GetDuration(cfg.Classifier.BackoffMax),
		PromptContentLimit: cfg.Classifier.PromptContentLimit,
		SnippetLength:      cfg.Classifier.SnippetLength,
		TranscriptLimit:    cfg.Classifier.TranscriptLimit,
		MaxTokens:          cfg.Anthropic.MaxTokens,
		TranscriptTokens:   cfg.Anthropic.TranscriptMaxTokens,
	}
}

// DefaultConfig mirrors the defaults applied by the config loader.
func DefaultConfig() Config {
	return Config{
		Concurrency:        5,
		MaxRetries:         3,
		BackoffBase:        2 * time.Second,
		BackoffMax:         10 * time.Second,
		PromptContentLimit: 2000,
		SnippetLength:      500,
		TranscriptLimit:    15000,
		MaxTokens:          1024,
		TranscriptTokens:   4096,
	}
}
