// internal/storage/airtable.go
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"merchant-insights/internal/common/config"
	"merchant-insights/internal/common/database"
	apperrors "merchant-insights/internal/common/errors"
	httpclient "merchant-insights/internal/common/http"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

// Airtable table names.
const (
	rawSourcesTable = "Raw Sources"
	insightsTable   = "Insights"
	clustersTable   = "Problem Clusters"
	scoresTable     = "Opportunity Scores"
)

const lookupCacheTTL = 24 * time.Hour

type airtableRecord struct {
	ID     string                 `json:"id,omitempty"`
	Fields map[string]interface{} `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

// AirtableBackend persists the pipeline through the Airtable REST API.
// The optional Redis cache short-circuits the source_id to record-id
// lookups that otherwise cost one list call per duplicate check.
type AirtableBackend struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
	baseID  string
	cache   *database.RedisClient
	logger  logger.Logger
}

func NewAirtableBackend(cfg config.AirtableConfig, cache *database.RedisClient, log logger.Logger) *AirtableBackend {
	return &AirtableBackend{
		http:    httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		baseID:  cfg.BaseID,
		cache:   cache,
		logger:  log,
	}
}

func (b *AirtableBackend) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", b.baseURL, b.baseID, url.PathEscape(table))
}

func (b *AirtableBackend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.apiKey}
}

func wrapAirtableError(err error) *apperrors.StandardError {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return apperrors.NewRemoteAPIFailedError(apiErr.StatusCode, apiErr.Body)
	}
	return apperrors.NewExternalServiceError("airtable", err)
}

// matchFormula builds a filterByFormula equality check on one text field.
func matchFormula(field, value string) string {
	escaped := strings.ReplaceAll(value, `"`, `\"`)
	return fmt.Sprintf(`{%s} = "%s"`, field, escaped)
}

func (b *AirtableBackend) listAll(ctx context.Context, table string, params url.Values) ([]airtableRecord, error) {
	var records []airtableRecord
	offset := ""
	for {
		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		reqURL := b.tableURL(table)
		if encoded := q.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}

		var page airtableList
		if err := b.http.DoJSON(ctx, "GET", reqURL, b.headers(), nil, &page); err != nil {
			return nil, wrapAirtableError(err)
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

// firstByFormula returns the first matching record id, or "" when none match.
func (b *AirtableBackend) firstByFormula(ctx context.Context, table, formula string) (string, error) {
	params := url.Values{}
	params.Set("filterByFormula", formula)
	params.Set("maxRecords", "1")

	var page airtableList
	reqURL := b.tableURL(table) + "?" + params.Encode()
	if err := b.http.DoJSON(ctx, "GET", reqURL, b.headers(), nil, &page); err != nil {
		return "", wrapAirtableError(err)
	}
	if len(page.Records) == 0 {
		return "", nil
	}
	return page.Records[0].ID, nil
}

func (b *AirtableBackend) createRecord(ctx context.Context, table string, fields map[string]interface{}) (string, error) {
	var created airtableRecord
	if err := b.http.DoJSON(ctx, "POST", b.tableURL(table), b.headers(),
		airtableRecord{Fields: fields}, &created); err != nil {
		return "", wrapAirtableError(err)
	}
	return created.ID, nil
}

func (b *AirtableBackend) updateRecord(ctx context.Context, table, recordID string, fields map[string]interface{}) error {
	reqURL := b.tableURL(table) + "/" + recordID
	if err := b.http.DoJSON(ctx, "PATCH", reqURL, b.headers(),
		airtableRecord{Fields: fields}, nil); err != nil {
		return wrapAirtableError(err)
	}
	return nil
}

// lookupRecordID resolves a source_id to its Airtable record id, consulting
// the Redis cache first. Cache errors degrade to a formula lookup.
func (b *AirtableBackend) lookupRecordID(ctx context.Context, table, sourceID string) (string, error) {
	cacheKey := fmt.Sprintf("airtable:%s:%s", table, sourceID)
	if b.cache != nil {
		if id, err := b.cache.Get(ctx, cacheKey); err == nil && id != "" {
			return id, nil
		}
	}

	id, err := b.firstByFormula(ctx, table, matchFormula("source_id", sourceID))
	if err != nil {
		return "", err
	}
	if id != "" && b.cache != nil {
		if err := b.cache.Set(ctx, cacheKey, id, lookupCacheTTL); err != nil {
			b.logger.Warn("Failed to cache record id", map[string]interface{}{
				"table": table,
				"error": err.Error(),
			})
		}
	}
	return id, nil
}

func (b *AirtableBackend) SaveRaw(ctx context.Context, record *models.RawRecord) (string, error) {
	existing, err := b.lookupRecordID(ctx, rawSourcesTable, record.SourceID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError(rawSourcesTable, err)
	}
	fields := map[string]interface{}{
		"source_id":  record.SourceID,
		"source":     string(record.Source),
		"url":        record.URL,
		"title":      record.Title,
		"content":    record.CappedContent(),
		"author":     record.Author,
		"scraped_at": record.ScrapedAt.UTC().Format(time.RFC3339),
		"metadata":   string(metadata),
	}
	if record.CreatedAt != nil {
		fields["created_at"] = record.CreatedAt.UTC().Format(time.RFC3339)
	}

	id, err := b.createRecord(ctx, rawSourcesTable, fields)
	if err != nil {
		return "", err
	}
	if b.cache != nil {
		cacheKey := fmt.Sprintf("airtable:%s:%s", rawSourcesTable, record.SourceID)
		_ = b.cache.Set(ctx, cacheKey, id, lookupCacheTTL)
	}
	return id, nil
}

func (b *AirtableBackend) GetUnprocessedRaw(ctx context.Context, limit int) ([]*models.RawRecord, error) {
	params := url.Values{}
	params.Set("filterByFormula", `{processed} = ''`)
	params.Set("maxRecords", fmt.Sprintf("%d", limit))

	var page airtableList
	reqURL := b.tableURL(rawSourcesTable) + "?" + params.Encode()
	if err := b.http.DoJSON(ctx, "GET", reqURL, b.headers(), nil, &page); err != nil {
		return nil, wrapAirtableError(err)
	}

	records := make([]*models.RawRecord, 0, len(page.Records))
	for _, r := range page.Records {
		record := &models.RawRecord{
			ID:       r.ID,
			SourceID: fieldString(r.Fields, "source_id"),
			Source:   models.Source(fieldString(r.Fields, "source")),
			URL:      fieldString(r.Fields, "url"),
			Title:    fieldString(r.Fields, "title"),
			Content:  fieldString(r.Fields, "content"),
			Author:   fieldString(r.Fields, "author"),
		}
		if t, ok := fieldTime(r.Fields, "created_at"); ok {
			record.CreatedAt = &t
		}
		if t, ok := fieldTime(r.Fields, "scraped_at"); ok {
			record.ScrapedAt = t
		}
		if raw := fieldString(r.Fields, "metadata"); raw != "" {
			_ = json.Unmarshal([]byte(raw), &record.Metadata)
		}
		records = append(records, record)
	}
	return records, nil
}

func (b *AirtableBackend) MarkProcessed(ctx context.Context, sourceID string) error {
	id, err := b.lookupRecordID(ctx, rawSourcesTable, sourceID)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	return b.updateRecord(ctx, rawSourcesTable, id, map[string]interface{}{"processed": true})
}

func (b *AirtableBackend) SaveInsight(ctx context.Context, insight *models.ClassifiedInsight, rawRecordID string) (string, error) {
	existing, err := b.lookupRecordID(ctx, insightsTable, insight.SourceID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	secondary := make([]string, len(insight.SecondaryCategories))
	for i, c := range insight.SecondaryCategories {
		secondary[i] = string(c)
	}

	fields := map[string]interface{}{
		"source_id":            insight.SourceID,
		"source":               string(insight.Source),
		"source_url":           insight.SourceURL,
		"problem_statement":    insight.ProblemStatement,
		"category":             string(insight.Category),
		"secondary_categories": strings.Join(secondary, ", "),
		"frustration_level":    insight.FrustrationLevel,
		"clarity_score":        insight.ClarityScore,
		"willingness_to_pay":   insight.WillingnessToPay,
		"wtp_quotes":           strings.Join(insight.WTPQuotes, "\n"),
		"current_workaround":   insight.CurrentWorkaround,
		"keywords":             strings.Join(insight.Keywords, ", "),
		"original_title":       insight.OriginalTitle,
		"content_snippet":      insight.ContentSnippet,
		"classified_at":        insight.ClassifiedAt.UTC().Format(time.RFC3339),
	}
	if rawRecordID != "" {
		fields["raw_source"] = []string{rawRecordID}
	}

	id, err := b.createRecord(ctx, insightsTable, fields)
	if err != nil {
		return "", err
	}
	if b.cache != nil {
		cacheKey := fmt.Sprintf("airtable:%s:%s", insightsTable, insight.SourceID)
		_ = b.cache.Set(ctx, cacheKey, id, lookupCacheTTL)
	}
	return id, nil
}

func (b *AirtableBackend) GetInsightsByCategory(ctx context.Context, category models.ProblemCategory) ([]*models.InsightRecord, error) {
	params := url.Values{}
	params.Set("filterByFormula", matchFormula("category", string(category)))
	records, err := b.listAll(ctx, insightsTable, params)
	if err != nil {
		return nil, err
	}
	return decodeInsightRecords(records), nil
}

func (b *AirtableBackend) GetAllInsights(ctx context.Context) ([]*models.InsightRecord, error) {
	records, err := b.listAll(ctx, insightsTable, url.Values{})
	if err != nil {
		return nil, err
	}
	return decodeInsightRecords(records), nil
}

func decodeInsightRecords(records []airtableRecord) []*models.InsightRecord {
	insights := make([]*models.InsightRecord, 0, len(records))
	for _, r := range records {
		rec := &models.InsightRecord{
			ID:                r.ID,
			SourceID:          fieldString(r.Fields, "source_id"),
			Source:            fieldString(r.Fields, "source"),
			SourceURL:         fieldString(r.Fields, "source_url"),
			OriginalTitle:     fieldString(r.Fields, "original_title"),
			ProblemStatement:  fieldString(r.Fields, "problem_statement"),
			Category:          fieldString(r.Fields, "category"),
			FrustrationLevel:  fieldInt(r.Fields, "frustration_level"),
			ClarityScore:      fieldInt(r.Fields, "clarity_score"),
			WillingnessToPay:  fieldBool(r.Fields, "willingness_to_pay"),
			WTPQuotes:         splitJoined(fieldString(r.Fields, "wtp_quotes"), "\n"),
			CurrentWorkaround: fieldString(r.Fields, "current_workaround"),
			Keywords:          splitJoined(fieldString(r.Fields, "keywords"), ", "),
			ContentSnippet:    fieldString(r.Fields, "content_snippet"),
		}
		if t, ok := fieldTime(r.Fields, "classified_at"); ok {
			rec.ClassifiedAt = t
		}
		insights = append(insights, rec)
	}
	return insights
}

func (b *AirtableBackend) SaveCluster(ctx context.Context, cluster *models.Cluster) (string, error) {
	createdAt := cluster.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return b.createRecord(ctx, clustersTable, map[string]interface{}{
		"name":        cluster.Name,
		"description": cluster.Description,
		"category":    string(cluster.Category),
		"insights":    cluster.InsightIDs,
		"frequency":   cluster.Frequency,
		"created_at":  createdAt.UTC().Format(time.RFC3339),
	})
}

func (b *AirtableBackend) GetClusters(ctx context.Context) ([]*models.Cluster, error) {
	records, err := b.listAll(ctx, clustersTable, url.Values{})
	if err != nil {
		return nil, err
	}
	clusters := make([]*models.Cluster, 0, len(records))
	for _, r := range records {
		cluster := &models.Cluster{
			ID:          r.ID,
			Name:        fieldString(r.Fields, "name"),
			Description: fieldString(r.Fields, "description"),
			Category:    models.ProblemCategory(fieldString(r.Fields, "category")),
			InsightIDs:  fieldStringSlice(r.Fields, "insights"),
			Frequency:   fieldInt(r.Fields, "frequency"),
		}
		if t, ok := fieldTime(r.Fields, "created_at"); ok {
			cluster.CreatedAt = t
		}
		clusters = append(clusters, cluster)
	}
	return clusters, nil
}

func (b *AirtableBackend) SaveOpportunityScore(ctx context.Context, score *models.OpportunityScore) (string, error) {
	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now().UTC()
	}
	return b.createRecord(ctx, scoresTable, map[string]interface{}{
		"cluster":               []string{score.ClusterID},
		"cluster_name":          score.ClusterName,
		"frequency_score":       score.FrequencyScore,
		"intensity_score":       score.IntensityScore,
		"wtp_score":             score.WTPScore,
		"competition_gap_score": score.CompetitionGapScore,
		"total_score":           score.TotalScore,
		"notes":                 score.Notes,
		"scored_at":             scoredAt.UTC().Format(time.RFC3339),
	})
}

func (b *AirtableBackend) GetRankedOpportunities(ctx context.Context) ([]*models.OpportunityScore, error) {
	params := url.Values{}
	params.Set("sort[0][field]", "total_score")
	params.Set("sort[0][direction]", "desc")
	records, err := b.listAll(ctx, scoresTable, params)
	if err != nil {
		return nil, err
	}

	scores := make([]*models.OpportunityScore, 0, len(records))
	for _, r := range records {
		score := &models.OpportunityScore{
			ID:                  r.ID,
			ClusterName:         fieldString(r.Fields, "cluster_name"),
			FrequencyScore:      fieldFloat(r.Fields, "frequency_score"),
			IntensityScore:      fieldFloat(r.Fields, "intensity_score"),
			WTPScore:            fieldFloat(r.Fields, "wtp_score"),
			CompetitionGapScore: fieldFloat(r.Fields, "competition_gap_score"),
			TotalScore:          fieldFloat(r.Fields, "total_score"),
			Notes:               fieldString(r.Fields, "notes"),
		}
		if links := fieldStringSlice(r.Fields, "cluster"); len(links) > 0 {
			score.ClusterID = links[0]
		}
		if t, ok := fieldTime(r.Fields, "scored_at"); ok {
			score.ScoredAt = t
		}
		scores = append(scores, score)
	}
	return scores, nil
}

func (b *AirtableBackend) GetStats(ctx context.Context) (*models.Stats, error) {
	raw, err := b.listAll(ctx, rawSourcesTable, url.Values{})
	if err != nil {
		return nil, err
	}
	insights, err := b.listAll(ctx, insightsTable, url.Values{})
	if err != nil {
		return nil, err
	}
	clusters, err := b.listAll(ctx, clustersTable, url.Values{})
	if err != nil {
		return nil, err
	}
	scores, err := b.listAll(ctx, scoresTable, url.Values{})
	if err != nil {
		return nil, err
	}

	breakdown := map[string]int{}
	for _, r := range insights {
		category := fieldString(r.Fields, "category")
		if category == "" {
			category = string(models.CategoryOther)
		}
		breakdown[category]++
	}

	return &models.Stats{
		RawDataPoints:       len(raw),
		ClassifiedInsights:  len(insights),
		ProblemClusters:     len(clusters),
		ScoredOpportunities: len(scores),
		CategoryBreakdown:   breakdown,
	}, nil
}

func (b *AirtableBackend) Close() error {
	if b.cache != nil {
		return b.cache.Close()
	}
	return nil
}

// Field accessors for Airtable's loosely typed JSON fields.

func fieldString(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldInt(fields map[string]interface{}, key string) int {
	if v, ok := fields[key].(float64); ok {
		return int(v)
	}
	return 0
}

func fieldFloat(fields map[string]interface{}, key string) float64 {
	if v, ok := fields[key].(float64); ok {
		return v
	}
	return 0
}

func fieldBool(fields map[string]interface{}, key string) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return false
}

func fieldStringSlice(fields map[string]interface{}, key string) []string {
	raw, ok := fields[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func fieldTime(fields map[string]interface{}, key string) (time.Time, bool) {
	raw := fieldString(fields, key)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
