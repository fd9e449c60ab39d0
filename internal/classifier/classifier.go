// internal/classifier/classifier.go
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "merchant-insights/internal/common/errors"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/common/observability"
	"merchant-insights/internal/llm"
	"merchant-insights/internal/models"
)

// responseSchema validates the structural shape of the completion output.
// Category strings are mapped through the closed enum separately so an
// unknown category gets its own error.
var responseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"problem_statement":    map[string]interface{}{"type": "string", "minLength": 1},
		"category":             map[string]interface{}{"type": "string", "minLength": 1},
		"secondary_categories": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"frustration_level":    map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 5},
		"clarity_score":        map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 5},
		"willingness_to_pay":   map[string]interface{}{"type": "boolean"},
		"wtp_quotes":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"current_workaround":   map[string]interface{}{"type": []string{"string", "null"}},
		"keywords":             map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
	},
	"required": []string{
		"problem_statement", "category", "frustration_level",
		"clarity_score", "willingness_to_pay",
	},
}

type completionResult struct {
	ProblemStatement    string   `json:"problem_statement"`
	Category            string   `json:"category"`
	SecondaryCategories []string `json:"secondary_categories"`
	FrustrationLevel    int      `json:"frustration_level"`
	ClarityScore        int      `json:"clarity_score"`
	WillingnessToPay    bool     `json:"willingness_to_pay"`
	WTPQuotes           []string `json:"wtp_quotes"`
	CurrentWorkaround   *string  `json:"current_workaround"`
	Keywords            []string `json:"keywords"`
}

// Classifier turns raw records into classified insights via the completion
// service.
type Classifier struct {
	llm    llm.CompletionClient
	config Config
	logger logger.Logger
	obs    *observability.Observability
}

func New(client llm.CompletionClient, cfg Config, log logger.Logger, obs *observability.Observability) *Classifier {
	return &Classifier{
		llm:    client,
		config: cfg,
		logger: log,
		obs:    obs,
	}
}

// Classify runs the full retry budget for one record and returns the insight
// or the last error. Callers at the batch boundary swallow the error; direct
// callers must handle the no-result case explicitly.
func (c *Classifier) Classify(ctx context.Context, record *models.RawRecord) (*models.ClassifiedInsight, error) {
	start := time.Now()

	insight, err := c.classifyWithRetry(ctx, record)
	status := "success"
	if err != nil {
		status = "failure"
	}
	if c.obs != nil {
		c.obs.RecordClassified(ctx, status)
		c.obs.RecordClassificationDuration(ctx, time.Since(start), status)
	}
	if err != nil {
		return nil, apperrors.NewClassificationFailedError(record.SourceID, err)
	}
	return insight, nil
}

func (c *Classifier) classifyWithRetry(ctx context.Context, record *models.RawRecord) (*models.ClassifiedInsight, error) {
	prompt := buildPrompt(record, c.config.PromptContentLimit)

	var lastErr error
	delay := c.config.BackoffBase
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > c.config.BackoffMax {
				delay = c.config.BackoffMax
			}
		}

		insight, err := c.classifyOnce(ctx, record, prompt)
		if err == nil {
			return insight, nil
		}
		lastErr = err

		c.logger.Warn("Classification attempt failed", map[string]interface{}{
			"sourceId": record.SourceID,
			"attempt":  attempt,
			"error":    err.Error(),
		})

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	c.logger.Error("Classification failed after all attempts", map[string]interface{}{
		"sourceId": record.SourceID,
		"attempts": c.config.MaxRetries,
		"error":    lastErr.Error(),
	})
	return nil, lastErr
}

func (c *Classifier) classifyOnce(ctx context.Context, record *models.RawRecord, prompt string) (*models.ClassifiedInsight, error) {
	raw, err := c.llm.Complete(ctx, prompt, c.config.MaxTokens)
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSONResponse(raw)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, apperrors.NewInvalidModelOutputError(fmt.Sprintf("malformed JSON: %s", err))
	}

	if err := validateResponse(doc); err != nil {
		return nil, err
	}

	var result completionResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, apperrors.NewInvalidModelOutputError(err.Error())
	}

	category, err := models.ParseCategory(result.Category)
	if err != nil {
		return nil, apperrors.NewUnknownCategoryError(result.Category)
	}

	secondary := make([]models.ProblemCategory, 0, len(result.SecondaryCategories))
	for _, s := range result.SecondaryCategories {
		sc, err := models.ParseCategory(s)
		if err != nil {
			return nil, apperrors.NewUnknownCategoryError(s)
		}
		secondary = append(secondary, sc)
	}

	workaround := ""
	if result.CurrentWorkaround != nil {
		workaround = *result.CurrentWorkaround
	}

	snippet := record.Content
	if len(snippet) > c.config.SnippetLength {
		snippet = snippet[:c.config.SnippetLength]
	}

	insight := &models.ClassifiedInsight{
		SourceID:            record.SourceID,
		Source:              record.Source,
		SourceURL:           record.URL,
		OriginalTitle:       record.Title,
		ProblemStatement:    result.ProblemStatement,
		Category:            category,
		SecondaryCategories: secondary,
		FrustrationLevel:    result.FrustrationLevel,
		ClarityScore:        result.ClarityScore,
		WillingnessToPay:    result.WillingnessToPay,
		WTPQuotes:           result.WTPQuotes,
		CurrentWorkaround:   workaround,
		Keywords:            result.Keywords,
		ContentSnippet:      snippet,
		ClassifiedAt:        time.Now().UTC(),
	}

	if err := insight.Validate(); err != nil {
		return nil, apperrors.NewInvalidInsightError(err.Error())
	}

	return insight, nil
}

func validateResponse(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(responseSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.NewInvalidModelOutputError(err.Error())
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewInvalidModelOutputError(strings.Join(errs, "; "))
	}
	return nil
}

// ClassifyBatch classifies all records with at most Concurrency calls in
// flight and streams successful insights in completion order. Failed items
// are logged at the single-item layer and omitted here; the channel closes
// once every record has resolved.
func (c *Classifier) ClassifyBatch(ctx context.Context, records []*models.RawRecord) <-chan *models.ClassifiedInsight {
	out := make(chan *models.ClassifiedInsight)
	sem := make(chan struct{}, c.config.Concurrency)

	var wg sync.WaitGroup
	for _, record := range records {
		wg.Add(1)
		go func(rec *models.RawRecord) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			insight, err := c.Classify(ctx, rec)
			if err != nil {
				return
			}

			select {
			case out <- insight:
			case <-ctx.Done():
			}
		}(record)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
