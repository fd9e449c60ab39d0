// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"merchant-insights/internal/analysis"
	"merchant-insights/internal/classifier"
	apperrors "merchant-insights/internal/common/errors"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/common/metrics"
	"merchant-insights/internal/common/observability"
	"merchant-insights/internal/models"
	"merchant-insights/internal/research"
	"merchant-insights/internal/storage"
)

// RunSummary reports what one classification run did.
type RunSummary struct {
	Fetched    int `json:"fetched"`
	Classified int `json:"classified"`
	Failed     int `json:"failed"`
	Saved      int `json:"saved"`
}

// Service orchestrates the classify-and-persist pipeline. Classification
// failures are logged per item and do not stop the run; storage failures
// abort it.
type Service struct {
	backend     storage.Backend
	classifier  *classifier.Classifier
	transcripts *classifier.TranscriptClassifier
	research    *research.Store
	errors      *apperrors.ErrorHandler
	logger      logger.Logger
	obs         *observability.Observability
	concurrency int
}

func NewService(
	backend storage.Backend,
	clf *classifier.Classifier,
	transcripts *classifier.TranscriptClassifier,
	researchStore *research.Store,
	obs *observability.Observability,
	log logger.Logger,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		backend:     backend,
		classifier:  clf,
		transcripts: transcripts,
		research:    researchStore,
		errors:      apperrors.NewErrorHandler(log),
		logger:      log,
		obs:         obs,
		concurrency: concurrency,
	}
}

// Run fetches up to limit unprocessed raw records, classifies them with
// bounded concurrency and persists each resulting insight. A record is
// marked processed only after its insight is saved.
func (s *Service) Run(ctx context.Context, limit int) (*RunSummary, error) {
	records, err := s.backend.GetUnprocessedRaw(ctx, limit)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{Fetched: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		storeErr error
		wg       sync.WaitGroup
	)
	sem := make(chan struct{}, s.concurrency)

	for _, record := range records {
		wg.Add(1)
		go func(rec *models.RawRecord) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-sem }()

			source := string(rec.Source)
			metrics.BatchInFlight.WithLabelValues(source).Inc()
			defer metrics.BatchInFlight.WithLabelValues(source).Dec()

			start := time.Now()
			insight, err := s.classifier.Classify(runCtx, rec)
			metrics.ClassificationDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

			if err != nil {
				stdErr := s.errors.HandleItemError(rec.SourceID, err)
				metrics.RecordsFailed.WithLabelValues(source, string(stdErr.Code)).Inc()
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return
			}
			metrics.RecordsClassified.WithLabelValues(source).Inc()

			if _, err := s.backend.SaveInsight(runCtx, insight, rec.ID); err != nil {
				s.failRun(&mu, &storeErr, cancel, err)
				return
			}
			if err := s.backend.MarkProcessed(runCtx, rec.SourceID); err != nil {
				s.failRun(&mu, &storeErr, cancel, err)
				return
			}
			if s.obs != nil {
				s.obs.RecordInsightSaved(runCtx, source)
			}

			mu.Lock()
			summary.Classified++
			summary.Saved++
			mu.Unlock()
		}(record)
	}

	wg.Wait()
	if storeErr != nil {
		return nil, storeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Service) failRun(mu *sync.Mutex, storeErr *error, cancel context.CancelFunc, err error) {
	mu.Lock()
	if *storeErr == nil {
		*storeErr = err
	}
	mu.Unlock()
	cancel()
}

// ProcessTranscript classifies one interview transcript, upserts the
// participant and appends the extracted insights to the research store.
// Returns the number of insights stored.
func (s *Service) ProcessTranscript(ctx context.Context, transcript *models.Transcript, participant *models.InterviewParticipant) (int, error) {
	if s.research == nil {
		return 0, fmt.Errorf("research store is not configured")
	}

	result, err := s.transcripts.ClassifyTranscript(ctx, transcript)
	if err != nil {
		return 0, err
	}

	if _, err := s.research.SaveParticipant(ctx, participant); err != nil {
		return 0, err
	}

	interviewID := uuid.NewString()
	insights := s.transcripts.ConvertToInterviewInsights(result, interviewID, participant.ParticipantID)
	for _, insight := range insights {
		if _, err := s.research.SaveInsight(ctx, insight); err != nil {
			return 0, err
		}
	}

	s.logger.Info("Transcript processed", map[string]interface{}{
		"participantId": participant.ParticipantID,
		"interviewId":   interviewID,
		"painPoints":    len(result.PainPoints),
		"stored":        len(insights),
	})
	return len(insights), nil
}

// RankOpportunities loads all scraped and interview insights and reranks
// them. The research store is optional; without it ranking runs on scraped
// data alone.
func (s *Service) RankOpportunities(ctx context.Context) ([]*models.RankedOpportunity, error) {
	scraped, err := s.backend.GetAllInsights(ctx)
	if err != nil {
		return nil, err
	}

	var interviews []*models.InterviewInsight
	if s.research != nil {
		interviews, err = s.research.GetAllInsights(ctx)
		if err != nil {
			return nil, err
		}
	}

	reranker := analysis.NewReranker(scraped, interviews)
	return reranker.RankOpportunities(), nil
}

// CorrelationReport compares the categories present in the scraped insights
// against the interview evidence.
func (s *Service) CorrelationReport(ctx context.Context) (*models.CorrelationReport, error) {
	if s.research == nil {
		return nil, fmt.Errorf("research store is not configured")
	}
	scraped, err := s.backend.GetAllInsights(ctx)
	if err != nil {
		return nil, err
	}
	categories := map[string]bool{}
	for _, insight := range scraped {
		categories[insight.Category] = true
	}
	return s.research.GenerateCorrelationReport(ctx, categories)
}
