// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-insights/internal/classifier"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

// fakeBackend is an in-memory storage.Backend for pipeline tests.
type fakeBackend struct {
	mu          sync.Mutex
	unprocessed []*models.RawRecord
	processed   map[string]bool
	insights    []*models.InsightRecord
	saveErr     error
	markErr     error
}

func newFakeBackend(records ...*models.RawRecord) *fakeBackend {
	return &fakeBackend{unprocessed: records, processed: map[string]bool{}}
}

func (f *fakeBackend) SaveRaw(ctx context.Context, record *models.RawRecord) (string, error) {
	return record.SourceID, nil
}

func (f *fakeBackend) GetUnprocessedRaw(ctx context.Context, limit int) ([]*models.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := f.unprocessed
	if limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

func (f *fakeBackend) MarkProcessed(ctx context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.processed[sourceID] = true
	return nil
}

func (f *fakeBackend) SaveInsight(ctx context.Context, insight *models.ClassifiedInsight, rawRecordID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.insights = append(f.insights, &models.InsightRecord{
		SourceID: insight.SourceID,
		Category: string(insight.Category),
	})
	return fmt.Sprintf("%d", len(f.insights)), nil
}

func (f *fakeBackend) GetInsightsByCategory(ctx context.Context, category models.ProblemCategory) ([]*models.InsightRecord, error) {
	return nil, nil
}

func (f *fakeBackend) GetAllInsights(ctx context.Context) ([]*models.InsightRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insights, nil
}

func (f *fakeBackend) SaveCluster(ctx context.Context, cluster *models.Cluster) (string, error) {
	return "", nil
}

func (f *fakeBackend) GetClusters(ctx context.Context) ([]*models.Cluster, error) {
	return nil, nil
}

func (f *fakeBackend) SaveOpportunityScore(ctx context.Context, score *models.OpportunityScore) (string, error) {
	return "", nil
}

func (f *fakeBackend) GetRankedOpportunities(ctx context.Context) ([]*models.OpportunityScore, error) {
	return nil, nil
}

func (f *fakeBackend) GetStats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{}, nil
}

func (f *fakeBackend) Close() error { return nil }

// fakeCompletion returns a valid classification for every prompt except those
// containing failSubstring.
type fakeCompletion struct {
	failSubstring string
}

func (f *fakeCompletion) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if f.failSubstring != "" && strings.Contains(prompt, f.failSubstring) {
		return "", fmt.Errorf("model overloaded")
	}
	return `{
		"problem_statement": "Reports lack per-product margins",
		"category": "analytics",
		"secondary_categories": [],
		"frustration_level": 4,
		"clarity_score": 5,
		"willingness_to_pay": false,
		"wtp_quotes": [],
		"current_workaround": null,
		"keywords": ["analytics"]
	}`, nil
}

func (f *fakeCompletion) ModelName() string { return "fake-model" }

func pipelineRecord(sourceID, content string) *models.RawRecord {
	return &models.RawRecord{
		ID:        "rec-" + sourceID,
		Source:    models.SourceReddit,
		SourceID:  sourceID,
		Title:     "title",
		Content:   content,
		ScrapedAt: time.Now().UTC(),
	}
}

func newTestService(backend *fakeBackend, failSubstring string) *Service {
	cfg := classifier.DefaultConfig()
	cfg.MaxRetries = 1
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = 2 * time.Millisecond

	log := logger.NewNoOpLogger()
	clf := classifier.New(&fakeCompletion{failSubstring: failSubstring}, cfg, log, nil)
	return NewService(backend, clf, nil, nil, nil, log, 2)
}

func TestRunClassifiesAndPersists(t *testing.T) {
	backend := newFakeBackend(
		pipelineRecord("r1", "reports are useless"),
		pipelineRecord("r2", "more complaints"),
	)
	service := newTestService(backend, "")

	summary, err := service.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 2, summary.Classified)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, 0, summary.Failed)

	assert.Len(t, backend.insights, 2)
	assert.True(t, backend.processed["r1"])
	assert.True(t, backend.processed["r2"])
}

func TestRunSwallowsClassificationFailures(t *testing.T) {
	backend := newFakeBackend(
		pipelineRecord("r1", "reports are useless"),
		pipelineRecord("r2", "fail-me please"),
		pipelineRecord("r3", "another complaint"),
	)
	service := newTestService(backend, "fail-me")

	summary, err := service.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Fetched)
	assert.Equal(t, 2, summary.Classified)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, backend.insights, 2)
	assert.False(t, backend.processed["r2"])
}

func TestRunAbortsOnStorageError(t *testing.T) {
	backend := newFakeBackend(pipelineRecord("r1", "reports are useless"))
	backend.saveErr = fmt.Errorf("disk full")
	service := newTestService(backend, "")

	_, err := service.Run(context.Background(), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, backend.processed["r1"])
}

func TestRunMarksProcessedOnlyAfterSave(t *testing.T) {
	backend := newFakeBackend(pipelineRecord("r1", "reports are useless"))
	backend.markErr = fmt.Errorf("airtable down")
	service := newTestService(backend, "")

	_, err := service.Run(context.Background(), 100)
	require.Error(t, err)
	// The insight was saved before the failing mark step.
	assert.Len(t, backend.insights, 1)
}

func TestRunEmptyBacklog(t *testing.T) {
	backend := newFakeBackend()
	service := newTestService(backend, "")

	summary, err := service.Run(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fetched)
}

func TestRunRespectsLimit(t *testing.T) {
	backend := newFakeBackend(
		pipelineRecord("r1", "one"),
		pipelineRecord("r2", "two"),
		pipelineRecord("r3", "three"),
	)
	service := newTestService(backend, "")

	summary, err := service.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 2, summary.Saved)
}

func TestProcessTranscriptNeedsResearchStore(t *testing.T) {
	service := newTestService(newFakeBackend(), "")

	_, err := service.ProcessTranscript(context.Background(),
		&models.Transcript{SourceFile: "iv.txt", FullText: "hello"},
		&models.InterviewParticipant{ParticipantID: "P001"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "research store is not configured")
}

func TestRankOpportunitiesFromScrapedOnly(t *testing.T) {
	backend := newFakeBackend(pipelineRecord("r1", "reports are useless"))
	service := newTestService(backend, "")

	_, err := service.Run(context.Background(), 100)
	require.NoError(t, err)

	ranked, err := service.RankOpportunities(context.Background())
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, models.CategoryAnalytics, ranked[0].Category)
	assert.False(t, ranked[0].InterviewValidated)
}
