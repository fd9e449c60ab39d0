// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"merchant-insights/internal/common/database"
	apperrors "merchant-insights/internal/common/errors"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS raw_sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT UNIQUE NOT NULL,
    source TEXT NOT NULL,
    url TEXT NOT NULL,
    title TEXT,
    content TEXT NOT NULL,
    author TEXT,
    created_at TIMESTAMP,
    scraped_at TIMESTAMP NOT NULL,
    metadata TEXT,
    processed BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS insights (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT UNIQUE NOT NULL,
    source TEXT NOT NULL,
    source_url TEXT NOT NULL,
    problem_statement TEXT NOT NULL,
    category TEXT NOT NULL,
    secondary_categories TEXT,
    frustration_level INTEGER NOT NULL,
    clarity_score INTEGER NOT NULL,
    willingness_to_pay BOOLEAN NOT NULL,
    wtp_quotes TEXT,
    current_workaround TEXT,
    keywords TEXT,
    original_title TEXT,
    content_snippet TEXT NOT NULL,
    classified_at TIMESTAMP NOT NULL,
    raw_source_id INTEGER REFERENCES raw_sources(id)
);

CREATE TABLE IF NOT EXISTS clusters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    description TEXT NOT NULL,
    category TEXT NOT NULL,
    insight_ids TEXT,
    frequency INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS opportunity_scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cluster_id INTEGER REFERENCES clusters(id),
    cluster_name TEXT NOT NULL,
    frequency_score REAL NOT NULL,
    intensity_score REAL NOT NULL,
    wtp_score REAL NOT NULL,
    competition_gap_score REAL NOT NULL,
    total_score REAL NOT NULL,
    notes TEXT,
    scored_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_raw_sources_processed ON raw_sources(processed);
CREATE INDEX IF NOT EXISTS idx_raw_sources_source ON raw_sources(source);
CREATE INDEX IF NOT EXISTS idx_insights_category ON insights(category);
CREATE INDEX IF NOT EXISTS idx_opportunity_scores_total ON opportunity_scores(total_score DESC);
`

// SQLiteBackend persists the pipeline in a local SQLite database.
type SQLiteBackend struct {
	client *database.SQLiteClient
	logger logger.Logger
}

// NewSQLiteBackend creates the schema if missing and returns the backend.
func NewSQLiteBackend(ctx context.Context, client *database.SQLiteClient, log logger.Logger) (*SQLiteBackend, error) {
	if _, err := client.Exec(ctx, sqliteSchema); err != nil {
		return nil, apperrors.NewStorageConnectionFailedError("sqlite", err)
	}
	return &SQLiteBackend{client: client, logger: log}, nil
}

// SaveRaw inserts a raw record, returning the existing row id when a record
// with the same source_id was saved before. Content is capped on write.
func (b *SQLiteBackend) SaveRaw(ctx context.Context, record *models.RawRecord) (string, error) {
	var existingID int64
	err := b.client.QueryRow(ctx,
		"SELECT id FROM raw_sources WHERE source_id = ?", record.SourceID,
	).Scan(&existingID)
	if err == nil {
		return strconv.FormatInt(existingID, 10), nil
	}
	if err != sql.ErrNoRows {
		return "", apperrors.NewStorageQueryFailedError("save_raw", err)
	}

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("raw_sources", err)
	}

	var createdAt interface{}
	if record.CreatedAt != nil {
		createdAt = record.CreatedAt.UTC().Format(time.RFC3339)
	}

	result, err := b.client.Exec(ctx, `
		INSERT INTO raw_sources
		(source_id, source, url, title, content, author, created_at, scraped_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SourceID,
		string(record.Source),
		record.URL,
		record.Title,
		record.CappedContent(),
		record.Author,
		createdAt,
		record.ScrapedAt.UTC().Format(time.RFC3339),
		string(metadata),
	)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("raw_sources", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("raw_sources", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (b *SQLiteBackend) GetUnprocessedRaw(ctx context.Context, limit int) ([]*models.RawRecord, error) {
	rows, err := b.client.Query(ctx, `
		SELECT id, source_id, source, url, title, content, author, created_at, scraped_at, metadata
		FROM raw_sources
		WHERE processed = FALSE OR processed IS NULL
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_unprocessed_raw", err)
	}
	defer rows.Close()

	var records []*models.RawRecord
	for rows.Next() {
		var (
			id                 int64
			record             models.RawRecord
			title, author      sql.NullString
			createdAt          sql.NullString
			scrapedAt, rawMeta string
			source             string
		)
		if err := rows.Scan(&id, &record.SourceID, &source, &record.URL, &title,
			&record.Content, &author, &createdAt, &scrapedAt, &rawMeta); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_unprocessed_raw", err)
		}
		record.ID = strconv.FormatInt(id, 10)
		record.Source = models.Source(source)
		record.Title = title.String
		record.Author = author.String
		if createdAt.Valid {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				record.CreatedAt = &t
			}
		}
		if t, err := time.Parse(time.RFC3339, scrapedAt); err == nil {
			record.ScrapedAt = t
		}
		if rawMeta != "" {
			if err := json.Unmarshal([]byte(rawMeta), &record.Metadata); err != nil {
				b.logger.Warn("Skipping malformed raw metadata", map[string]interface{}{
					"sourceId": record.SourceID,
				})
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_unprocessed_raw", err)
	}
	return records, nil
}

func (b *SQLiteBackend) MarkProcessed(ctx context.Context, sourceID string) error {
	_, err := b.client.Exec(ctx,
		"UPDATE raw_sources SET processed = TRUE WHERE source_id = ?", sourceID)
	if err != nil {
		return apperrors.NewStorageWriteFailedError("raw_sources", err)
	}
	return nil
}

// SaveInsight inserts a classified insight, returning the existing row id on
// a duplicate source_id. rawRecordID links back to raw_sources when known.
func (b *SQLiteBackend) SaveInsight(ctx context.Context, insight *models.ClassifiedInsight, rawRecordID string) (string, error) {
	var existingID int64
	err := b.client.QueryRow(ctx,
		"SELECT id FROM insights WHERE source_id = ?", insight.SourceID,
	).Scan(&existingID)
	if err == nil {
		return strconv.FormatInt(existingID, 10), nil
	}
	if err != sql.ErrNoRows {
		return "", apperrors.NewStorageQueryFailedError("save_insight", err)
	}

	secondary := make([]string, len(insight.SecondaryCategories))
	for i, c := range insight.SecondaryCategories {
		secondary[i] = string(c)
	}

	var rawID interface{}
	if rawRecordID != "" {
		parsed, err := strconv.ParseInt(rawRecordID, 10, 64)
		if err != nil {
			return "", apperrors.NewStorageWriteFailedError("insights", err)
		}
		rawID = parsed
	}

	result, err := b.client.Exec(ctx, `
		INSERT INTO insights
		(source_id, source, source_url, problem_statement, category, secondary_categories,
		 frustration_level, clarity_score, willingness_to_pay, wtp_quotes,
		 current_workaround, keywords, original_title, content_snippet, classified_at, raw_source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.SourceID,
		string(insight.Source),
		insight.SourceURL,
		insight.ProblemStatement,
		string(insight.Category),
		strings.Join(secondary, ", "),
		insight.FrustrationLevel,
		insight.ClarityScore,
		insight.WillingnessToPay,
		strings.Join(insight.WTPQuotes, "\n"),
		insight.CurrentWorkaround,
		strings.Join(insight.Keywords, ", "),
		insight.OriginalTitle,
		insight.ContentSnippet,
		insight.ClassifiedAt.UTC().Format(time.RFC3339),
		rawID,
	)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("insights", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("insights", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (b *SQLiteBackend) GetInsightsByCategory(ctx context.Context, category models.ProblemCategory) ([]*models.InsightRecord, error) {
	return b.queryInsights(ctx, "get_insights_by_category",
		"WHERE category = ?", string(category))
}

func (b *SQLiteBackend) GetAllInsights(ctx context.Context) ([]*models.InsightRecord, error) {
	return b.queryInsights(ctx, "get_all_insights", "")
}

func (b *SQLiteBackend) queryInsights(ctx context.Context, operation, where string, args ...interface{}) ([]*models.InsightRecord, error) {
	query := `
		SELECT id, source_id, source, source_url, problem_statement, category,
		       frustration_level, clarity_score, willingness_to_pay, wtp_quotes,
		       current_workaround, keywords, original_title, content_snippet, classified_at
		FROM insights ` + where

	rows, err := b.client.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	defer rows.Close()

	var insights []*models.InsightRecord
	for rows.Next() {
		var (
			id                             int64
			rec                            models.InsightRecord
			wtpQuotes, keywords            sql.NullString
			workaround, title, classifiedAt sql.NullString
		)
		if err := rows.Scan(&id, &rec.SourceID, &rec.Source, &rec.SourceURL,
			&rec.ProblemStatement, &rec.Category, &rec.FrustrationLevel,
			&rec.ClarityScore, &rec.WillingnessToPay, &wtpQuotes,
			&workaround, &keywords, &title, &rec.ContentSnippet, &classifiedAt); err != nil {
			return nil, apperrors.NewStorageQueryFailedError(operation, err)
		}
		rec.ID = strconv.FormatInt(id, 10)
		rec.CurrentWorkaround = workaround.String
		rec.OriginalTitle = title.String
		rec.WTPQuotes = splitJoined(wtpQuotes.String, "\n")
		rec.Keywords = splitJoined(keywords.String, ", ")
		if classifiedAt.Valid {
			if t, err := time.Parse(time.RFC3339, classifiedAt.String); err == nil {
				rec.ClassifiedAt = t
			}
		}
		insights = append(insights, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	return insights, nil
}

func (b *SQLiteBackend) SaveCluster(ctx context.Context, cluster *models.Cluster) (string, error) {
	insightIDs, err := json.Marshal(cluster.InsightIDs)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("clusters", err)
	}
	createdAt := cluster.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := b.client.Exec(ctx, `
		INSERT INTO clusters (name, description, category, insight_ids, frequency, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cluster.Name,
		cluster.Description,
		string(cluster.Category),
		string(insightIDs),
		cluster.Frequency,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("clusters", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("clusters", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (b *SQLiteBackend) GetClusters(ctx context.Context) ([]*models.Cluster, error) {
	rows, err := b.client.Query(ctx, `
		SELECT id, name, description, category, insight_ids, frequency, created_at
		FROM clusters`)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_clusters", err)
	}
	defer rows.Close()

	var clusters []*models.Cluster
	for rows.Next() {
		var (
			id                    int64
			cluster               models.Cluster
			category              string
			insightIDs, createdAt sql.NullString
		)
		if err := rows.Scan(&id, &cluster.Name, &cluster.Description, &category,
			&insightIDs, &cluster.Frequency, &createdAt); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_clusters", err)
		}
		cluster.ID = strconv.FormatInt(id, 10)
		cluster.Category = models.ProblemCategory(category)
		if insightIDs.Valid && insightIDs.String != "" {
			if err := json.Unmarshal([]byte(insightIDs.String), &cluster.InsightIDs); err != nil {
				return nil, apperrors.NewStorageQueryFailedError("get_clusters", err)
			}
		}
		if createdAt.Valid {
			if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
				cluster.CreatedAt = t
			}
		}
		clusters = append(clusters, &cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_clusters", err)
	}
	return clusters, nil
}

func (b *SQLiteBackend) SaveOpportunityScore(ctx context.Context, score *models.OpportunityScore) (string, error) {
	clusterID, err := strconv.ParseInt(score.ClusterID, 10, 64)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("opportunity_scores", err)
	}
	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = time.Now().UTC()
	}

	result, err := b.client.Exec(ctx, `
		INSERT INTO opportunity_scores
		(cluster_id, cluster_name, frequency_score, intensity_score,
		 wtp_score, competition_gap_score, total_score, notes, scored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		clusterID,
		score.ClusterName,
		score.FrequencyScore,
		score.IntensityScore,
		score.WTPScore,
		score.CompetitionGapScore,
		score.TotalScore,
		score.Notes,
		scoredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("opportunity_scores", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("opportunity_scores", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (b *SQLiteBackend) GetRankedOpportunities(ctx context.Context) ([]*models.OpportunityScore, error) {
	rows, err := b.client.Query(ctx, `
		SELECT id, cluster_id, cluster_name, frequency_score, intensity_score,
		       wtp_score, competition_gap_score, total_score, notes, scored_at
		FROM opportunity_scores
		ORDER BY total_score DESC`)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_ranked_opportunities", err)
	}
	defer rows.Close()

	var scores []*models.OpportunityScore
	for rows.Next() {
		var (
			id, clusterID    int64
			score            models.OpportunityScore
			notes, scoredAt  sql.NullString
		)
		if err := rows.Scan(&id, &clusterID, &score.ClusterName, &score.FrequencyScore,
			&score.IntensityScore, &score.WTPScore, &score.CompetitionGapScore,
			&score.TotalScore, &notes, &scoredAt); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_ranked_opportunities", err)
		}
		score.ID = strconv.FormatInt(id, 10)
		score.ClusterID = strconv.FormatInt(clusterID, 10)
		score.Notes = notes.String
		if scoredAt.Valid {
			if t, err := time.Parse(time.RFC3339, scoredAt.String); err == nil {
				score.ScoredAt = t
			}
		}
		scores = append(scores, &score)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_ranked_opportunities", err)
	}
	return scores, nil
}

func (b *SQLiteBackend) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{CategoryBreakdown: map[string]int{}}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM raw_sources", &stats.RawDataPoints},
		{"SELECT COUNT(*) FROM insights", &stats.ClassifiedInsights},
		{"SELECT COUNT(*) FROM clusters", &stats.ProblemClusters},
		{"SELECT COUNT(*) FROM opportunity_scores", &stats.ScoredOpportunities},
	}
	for _, c := range counts {
		if err := b.client.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_stats", err)
		}
	}

	rows, err := b.client.Query(ctx,
		"SELECT category, COUNT(*) FROM insights GROUP BY category")
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_stats", err)
		}
		stats.CategoryBreakdown[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_stats", err)
	}
	return stats, nil
}

func (b *SQLiteBackend) Close() error {
	return b.client.Close()
}

func splitJoined(s, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}
