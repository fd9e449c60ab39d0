// internal/models/opportunity.go
package models

import "time"

// RankedOpportunity is one Problem Category's aggregate position, computed by
// the reranker. Never persisted; recomputed in full on every ranking request.
type RankedOpportunity struct {
	Category       ProblemCategory `json:"category"`
	BaseScore      float64         `json:"base_score"`
	InterviewBonus float64         `json:"interview_bonus"`
	TotalScore     float64         `json:"total_score"`

	// From scraped data
	ScrapedCount   int     `json:"scraped_count"`
	AvgFrustration float64 `json:"avg_frustration"`
	WTPSignals     int     `json:"wtp_signals"`
	AvgEngagement  float64 `json:"avg_engagement"`

	// From interviews
	InterviewValidated    bool           `json:"interview_validated"`
	InterviewCount        int            `json:"interview_count"`
	InterviewWTPConfirmed bool           `json:"interview_wtp_confirmed"`
	InterviewAvgWTP       *float64       `json:"interview_avg_wtp,omitempty"`
	BusinessImpact        BusinessImpact `json:"business_impact,omitempty"`
	KeyQuotes             []string       `json:"key_quotes,omitempty"`
}

// Cluster is a named group of related insights.
type Cluster struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    ProblemCategory `json:"category"`
	InsightIDs  []string        `json:"insight_ids,omitempty"`
	Frequency   int             `json:"frequency"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OpportunityScore is a persisted score for a cluster, part of the
// exported-scoring path that exists alongside the in-memory reranker.
type OpportunityScore struct {
	ID                  string    `json:"id,omitempty"`
	ClusterID           string    `json:"cluster_id"`
	ClusterName         string    `json:"cluster_name"`
	FrequencyScore      float64   `json:"frequency_score"`
	IntensityScore      float64   `json:"intensity_score"`
	WTPScore            float64   `json:"wtp_score"`
	CompetitionGapScore float64   `json:"competition_gap_score"`
	TotalScore          float64   `json:"total_score"`
	Notes               string    `json:"notes,omitempty"`
	ScoredAt            time.Time `json:"scored_at"`
}

// Stats summarizes the current state of a storage backend.
type Stats struct {
	RawDataPoints       int            `json:"raw_data_points"`
	ClassifiedInsights  int            `json:"classified_insights"`
	ProblemClusters     int            `json:"problem_clusters"`
	ScoredOpportunities int            `json:"scored_opportunities"`
	CategoryBreakdown   map[string]int `json:"category_breakdown"`
}
