// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"

	"merchant-insights/internal/common/config"
	"merchant-insights/internal/common/database"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

// Backend is the persistence contract shared by all storage backends.
// Save operations are idempotent on source_id where the model demands it;
// storage errors always propagate to the caller.
type Backend interface {
	// Raw sources
	SaveRaw(ctx context.Context, record *models.RawRecord) (string, error)
	GetUnprocessedRaw(ctx context.Context, limit int) ([]*models.RawRecord, error)
	MarkProcessed(ctx context.Context, sourceID string) error

	// Insights
	SaveInsight(ctx context.Context, insight *models.ClassifiedInsight, rawRecordID string) (string, error)
	GetInsightsByCategory(ctx context.Context, category models.ProblemCategory) ([]*models.InsightRecord, error)
	GetAllInsights(ctx context.Context) ([]*models.InsightRecord, error)

	// Clusters
	SaveCluster(ctx context.Context, cluster *models.Cluster) (string, error)
	GetClusters(ctx context.Context) ([]*models.Cluster, error)

	// Opportunity scores
	SaveOpportunityScore(ctx context.Context, score *models.OpportunityScore) (string, error)
	GetRankedOpportunities(ctx context.Context) ([]*models.OpportunityScore, error)

	// Stats
	GetStats(ctx context.Context) (*models.Stats, error)

	Close() error
}

// Open constructs the backend named by cfg.Storage.Backend. The Airtable
// backend optionally uses Redis for its record-id lookup cache when Redis is
// enabled in config.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		client, err := database.NewSQLite(cfg.Storage.SQLite)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBackend(ctx, client, log)
	case "airtable":
		var cache *database.RedisClient
		if cfg.Storage.Redis.Enabled {
			var err error
			cache, err = database.NewRedis(cfg.Storage.Redis)
			if err != nil {
				return nil, err
			}
		}
		return NewAirtableBackend(cfg.Storage.Airtable, cache, log), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
