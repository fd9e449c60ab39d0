// internal/research/store.go
package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"merchant-insights/internal/common/database"
	apperrors "merchant-insights/internal/common/errors"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS interview_participants (
    id SERIAL PRIMARY KEY,
    participant_id TEXT UNIQUE NOT NULL,
    interview_date TIMESTAMPTZ NOT NULL,
    store_vertical TEXT,
    monthly_gmv_range TEXT,
    store_age_months INTEGER,
    team_size INTEGER,
    app_count INTEGER,
    monthly_app_budget INTEGER,
    beta_tester BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS interview_insights (
    id SERIAL PRIMARY KEY,
    interview_id TEXT NOT NULL,
    participant_id TEXT NOT NULL REFERENCES interview_participants(participant_id),
    recording_url TEXT,
    pain_category TEXT NOT NULL,
    pain_summary TEXT NOT NULL,
    verbatim_quotes JSONB,
    frustration_level INTEGER NOT NULL,
    frequency TEXT NOT NULL,
    business_impact TEXT NOT NULL,
    current_workaround TEXT,
    apps_tried JSONB,
    ideal_solution TEXT,
    wtp_amount_low INTEGER,
    wtp_amount_high INTEGER,
    wtp_quote TEXT,
    interviewer_notes TEXT,
    follow_up_candidate BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_interview_insights_participant ON interview_insights(participant_id);
CREATE INDEX IF NOT EXISTS idx_interview_insights_category ON interview_insights(pain_category);
`

// CategorySummary aggregates interview insights for one pain category.
type CategorySummary struct {
	Count          int      `json:"count"`
	AvgFrustration float64  `json:"avg_frustration"`
	WTPCount       int      `json:"wtp_count"`
	AvgWTP         *float64 `json:"avg_wtp"`
}

// Stats summarizes the interview research effort.
type Stats struct {
	TotalParticipants       int      `json:"total_participants"`
	TotalInsights           int      `json:"total_insights"`
	AvgInsightsPerInterview float64  `json:"avg_insights_per_interview"`
	BetaTesters             int      `json:"beta_testers"`
	InsightsWithWTP         int      `json:"insights_with_wtp"`
	WTPRate                 float64  `json:"wtp_rate"`
	AvgWTPAmount            *float64 `json:"avg_wtp_amount"`
	WTPRangeLow             *int     `json:"wtp_range_low"`
	WTPRangeHigh            *int     `json:"wtp_range_high"`
}

// Store persists interview research data in Postgres. Participants are
// upserted by participant_id with a full overwrite; insights are append-only.
type Store struct {
	client *database.PostgresClient
	logger logger.Logger
}

// NewStore creates the research schema if missing and returns the store.
func NewStore(ctx context.Context, client *database.PostgresClient, log logger.Logger) (*Store, error) {
	if _, err := client.Exec(ctx, storeSchema); err != nil {
		return nil, apperrors.NewStorageConnectionFailedError("postgres", err)
	}
	return &Store{client: client, logger: log}, nil
}

// SaveParticipant inserts or fully overwrites a participant record.
func (s *Store) SaveParticipant(ctx context.Context, p *models.InterviewParticipant) (string, error) {
	_, err := s.client.Exec(ctx, `
		INSERT INTO interview_participants
		(participant_id, interview_date, store_vertical, monthly_gmv_range,
		 store_age_months, team_size, app_count, monthly_app_budget, beta_tester)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (participant_id) DO UPDATE SET
			interview_date = EXCLUDED.interview_date,
			store_vertical = EXCLUDED.store_vertical,
			monthly_gmv_range = EXCLUDED.monthly_gmv_range,
			store_age_months = EXCLUDED.store_age_months,
			team_size = EXCLUDED.team_size,
			app_count = EXCLUDED.app_count,
			monthly_app_budget = EXCLUDED.monthly_app_budget,
			beta_tester = EXCLUDED.beta_tester`,
		p.ParticipantID,
		p.InterviewDate,
		p.StoreVertical,
		p.MonthlyGMVRange,
		p.StoreAgeMonths,
		p.TeamSize,
		p.AppCount,
		p.MonthlyAppBudget,
		p.BetaTester,
	)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("interview_participants", err)
	}
	return p.ParticipantID, nil
}

func (s *Store) GetParticipant(ctx context.Context, participantID string) (*models.InterviewParticipant, error) {
	row := s.client.QueryRow(ctx, `
		SELECT participant_id, interview_date, store_vertical, monthly_gmv_range,
		       store_age_months, team_size, app_count, monthly_app_budget, beta_tester
		FROM interview_participants
		WHERE participant_id = $1`, participantID)

	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_participant", err)
	}
	return p, nil
}

func (s *Store) GetAllParticipants(ctx context.Context) ([]*models.InterviewParticipant, error) {
	return s.queryParticipants(ctx, "get_all_participants", `
		SELECT participant_id, interview_date, store_vertical, monthly_gmv_range,
		       store_age_months, team_size, app_count, monthly_app_budget, beta_tester
		FROM interview_participants
		ORDER BY interview_date DESC`)
}

func (s *Store) GetBetaTesters(ctx context.Context) ([]*models.InterviewParticipant, error) {
	return s.queryParticipants(ctx, "get_beta_testers", `
		SELECT participant_id, interview_date, store_vertical, monthly_gmv_range,
		       store_age_months, team_size, app_count, monthly_app_budget, beta_tester
		FROM interview_participants
		WHERE beta_tester = TRUE`)
}

func (s *Store) queryParticipants(ctx context.Context, operation, query string, args ...interface{}) ([]*models.InterviewParticipant, error) {
	rows, err := s.client.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	defer rows.Close()

	var participants []*models.InterviewParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, apperrors.NewStorageQueryFailedError(operation, err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	return participants, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*models.InterviewParticipant, error) {
	var (
		p                             models.InterviewParticipant
		vertical, gmvRange            sql.NullString
		ageMonths, teamSize, appCount sql.NullInt64
		appBudget                     sql.NullInt64
	)
	if err := row.Scan(&p.ParticipantID, &p.InterviewDate, &vertical, &gmvRange,
		&ageMonths, &teamSize, &appCount, &appBudget, &p.BetaTester); err != nil {
		return nil, err
	}
	p.StoreVertical = vertical.String
	p.MonthlyGMVRange = gmvRange.String
	p.StoreAgeMonths = int(ageMonths.Int64)
	p.TeamSize = int(teamSize.Int64)
	p.AppCount = int(appCount.Int64)
	if appBudget.Valid {
		budget := int(appBudget.Int64)
		p.MonthlyAppBudget = &budget
	}
	return &p, nil
}

// SaveInsight appends one interview insight and returns its row id.
func (s *Store) SaveInsight(ctx context.Context, insight *models.InterviewInsight) (string, error) {
	quotes, err := json.Marshal(insight.VerbatimQuotes)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("interview_insights", err)
	}
	appsTried, err := json.Marshal(insight.AppsTried)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("interview_insights", err)
	}

	var id int64
	err = s.client.QueryRow(ctx, `
		INSERT INTO interview_insights
		(interview_id, participant_id, recording_url, pain_category, pain_summary,
		 verbatim_quotes, frustration_level, frequency, business_impact,
		 current_workaround, apps_tried, ideal_solution, wtp_amount_low,
		 wtp_amount_high, wtp_quote, interviewer_notes, follow_up_candidate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		insight.InterviewID,
		insight.ParticipantID,
		insight.RecordingURL,
		string(insight.PainCategory),
		insight.PainSummary,
		string(quotes),
		insight.FrustrationLevel,
		string(insight.Frequency),
		string(insight.BusinessImpact),
		insight.CurrentWorkaround,
		string(appsTried),
		insight.IdealSolution,
		insight.WTPAmountLow,
		insight.WTPAmountHigh,
		insight.WTPQuote,
		insight.InterviewerNotes,
		insight.FollowUpCandidate,
	).Scan(&id)
	if err != nil {
		return "", apperrors.NewStorageWriteFailedError("interview_insights", err)
	}
	return formatID(id), nil
}

const insightColumns = `
	interview_id, participant_id, recording_url, pain_category, pain_summary,
	verbatim_quotes, frustration_level, frequency, business_impact,
	current_workaround, apps_tried, ideal_solution, wtp_amount_low,
	wtp_amount_high, wtp_quote, interviewer_notes, follow_up_candidate`

func (s *Store) GetInsightsByParticipant(ctx context.Context, participantID string) ([]*models.InterviewInsight, error) {
	return s.queryInsights(ctx, "get_insights_by_participant",
		"SELECT"+insightColumns+" FROM interview_insights WHERE participant_id = $1",
		participantID)
}

func (s *Store) GetInsightsByCategory(ctx context.Context, category models.ProblemCategory) ([]*models.InterviewInsight, error) {
	return s.queryInsights(ctx, "get_insights_by_category",
		"SELECT"+insightColumns+" FROM interview_insights WHERE pain_category = $1",
		string(category))
}

func (s *Store) GetAllInsights(ctx context.Context) ([]*models.InterviewInsight, error) {
	return s.queryInsights(ctx, "get_all_insights",
		"SELECT"+insightColumns+" FROM interview_insights ORDER BY created_at DESC")
}

func (s *Store) GetInsightsWithWTP(ctx context.Context) ([]*models.InterviewInsight, error) {
	return s.queryInsights(ctx, "get_insights_with_wtp",
		"SELECT"+insightColumns+` FROM interview_insights
		WHERE wtp_amount_low IS NOT NULL OR wtp_amount_high IS NOT NULL`)
}

func (s *Store) GetHighFrustrationInsights(ctx context.Context, minLevel int) ([]*models.InterviewInsight, error) {
	return s.queryInsights(ctx, "get_high_frustration_insights",
		"SELECT"+insightColumns+" FROM interview_insights WHERE frustration_level >= $1",
		minLevel)
}

func (s *Store) queryInsights(ctx context.Context, operation, query string, args ...interface{}) ([]*models.InterviewInsight, error) {
	rows, err := s.client.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	defer rows.Close()

	var insights []*models.InterviewInsight
	for rows.Next() {
		var (
			insight                     models.InterviewInsight
			recordingURL, category      sql.NullString
			quotes, appsTried           []byte
			frequency, impact           string
			workaround, ideal, wtpQuote sql.NullString
			wtpLow, wtpHigh             sql.NullInt64
			notes                       sql.NullString
		)
		if err := rows.Scan(&insight.InterviewID, &insight.ParticipantID, &recordingURL,
			&category, &insight.PainSummary, &quotes, &insight.FrustrationLevel,
			&frequency, &impact, &workaround, &appsTried, &ideal,
			&wtpLow, &wtpHigh, &wtpQuote, &notes, &insight.FollowUpCandidate); err != nil {
			return nil, apperrors.NewStorageQueryFailedError(operation, err)
		}
		insight.RecordingURL = recordingURL.String
		insight.PainCategory = models.ProblemCategory(category.String)
		insight.Frequency = models.InterviewFrequency(frequency)
		insight.BusinessImpact = models.BusinessImpact(impact)
		insight.CurrentWorkaround = workaround.String
		insight.IdealSolution = ideal.String
		insight.WTPQuote = wtpQuote.String
		insight.InterviewerNotes = notes.String
		if wtpLow.Valid {
			low := int(wtpLow.Int64)
			insight.WTPAmountLow = &low
		}
		if wtpHigh.Valid {
			high := int(wtpHigh.Int64)
			insight.WTPAmountHigh = &high
		}
		if len(quotes) > 0 {
			if err := json.Unmarshal(quotes, &insight.VerbatimQuotes); err != nil {
				return nil, apperrors.NewStorageQueryFailedError(operation, err)
			}
		}
		if len(appsTried) > 0 {
			if err := json.Unmarshal(appsTried, &insight.AppsTried); err != nil {
				return nil, apperrors.NewStorageQueryFailedError(operation, err)
			}
		}
		insights = append(insights, &insight)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError(operation, err)
	}
	return insights, nil
}

// GetCategorySummary aggregates insights per pain category, ordered by count
// descending. avg_wtp is nil when no stored amount exists for the category.
func (s *Store) GetCategorySummary(ctx context.Context) (map[string]CategorySummary, error) {
	rows, err := s.client.Query(ctx, `
		SELECT
			pain_category,
			COUNT(*) AS count,
			AVG(frustration_level) AS avg_frustration,
			SUM(CASE WHEN wtp_amount_low IS NOT NULL OR wtp_amount_high IS NOT NULL THEN 1 ELSE 0 END) AS wtp_count,
			AVG(COALESCE(wtp_amount_low, wtp_amount_high)) AS avg_wtp
		FROM interview_insights
		GROUP BY pain_category
		ORDER BY count DESC`)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_category_summary", err)
	}
	defer rows.Close()

	summary := map[string]CategorySummary{}
	for rows.Next() {
		var (
			category       string
			count          int
			avgFrustration sql.NullFloat64
			wtpCount       int
			avgWTP         sql.NullFloat64
		)
		if err := rows.Scan(&category, &count, &avgFrustration, &wtpCount, &avgWTP); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_category_summary", err)
		}
		entry := CategorySummary{
			Count:          count,
			AvgFrustration: round2(avgFrustration.Float64),
			WTPCount:       wtpCount,
		}
		if avgWTP.Valid {
			v := round2(avgWTP.Float64)
			entry.AvgWTP = &v
		}
		summary[category] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_category_summary", err)
	}
	return summary, nil
}

// GetStats returns overall interview research statistics.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM interview_participants", &stats.TotalParticipants},
		{"SELECT COUNT(*) FROM interview_insights", &stats.TotalInsights},
		{"SELECT COUNT(*) FROM interview_participants WHERE beta_tester = TRUE", &stats.BetaTesters},
		{`SELECT COUNT(*) FROM interview_insights
		  WHERE wtp_amount_low IS NOT NULL OR wtp_amount_high IS NOT NULL`, &stats.InsightsWithWTP},
	}
	for _, c := range counts {
		if err := s.client.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("get_interview_stats", err)
		}
	}

	if stats.TotalParticipants > 0 {
		stats.AvgInsightsPerInterview = round1(float64(stats.TotalInsights) / float64(stats.TotalParticipants))
	}
	if stats.TotalInsights > 0 {
		stats.WTPRate = round1(float64(stats.InsightsWithWTP) / float64(stats.TotalInsights) * 100)
	}

	var avgWTP sql.NullFloat64
	var minWTP, maxWTP sql.NullInt64
	err := s.client.QueryRow(ctx, `
		SELECT
			AVG(COALESCE(wtp_amount_low, wtp_amount_high)),
			MIN(wtp_amount_low),
			MAX(wtp_amount_high)
		FROM interview_insights
		WHERE wtp_amount_low IS NOT NULL OR wtp_amount_high IS NOT NULL`,
	).Scan(&avgWTP, &minWTP, &maxWTP)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("get_interview_stats", err)
	}
	if avgWTP.Valid {
		v := round2(avgWTP.Float64)
		stats.AvgWTPAmount = &v
	}
	if minWTP.Valid {
		low := int(minWTP.Int64)
		stats.WTPRangeLow = &low
	}
	if maxWTP.Valid {
		high := int(maxWTP.Int64)
		stats.WTPRangeHigh = &high
	}
	return stats, nil
}

// GenerateCorrelationReport compares interview categories against the set of
// categories seen in scraped insights.
func (s *Store) GenerateCorrelationReport(ctx context.Context, scrapedCategories map[string]bool) (*models.CorrelationReport, error) {
	interviewCategories, err := s.distinctCategories(ctx, "SELECT DISTINCT pain_category FROM interview_insights")
	if err != nil {
		return nil, err
	}
	wtpCategories, err := s.distinctCategories(ctx, `
		SELECT DISTINCT pain_category FROM interview_insights
		WHERE wtp_amount_low IS NOT NULL OR wtp_amount_high IS NOT NULL`)
	if err != nil {
		return nil, err
	}

	report := &models.CorrelationReport{GeneratedAt: time.Now().UTC()}
	for c := range interviewCategories {
		if scrapedCategories[c] {
			report.Validated = append(report.Validated, c)
		} else {
			report.InterviewOnly = append(report.InterviewOnly, c)
		}
	}
	for c := range scrapedCategories {
		if !interviewCategories[c] {
			report.ScrapedOnly = append(report.ScrapedOnly, c)
		}
	}
	for c := range wtpCategories {
		report.WTPValidated = append(report.WTPValidated, c)
	}
	return report, nil
}

func (s *Store) distinctCategories(ctx context.Context, query string) (map[string]bool, error) {
	rows, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewStorageQueryFailedError("correlation_report", err)
	}
	defer rows.Close()

	categories := map[string]bool{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, apperrors.NewStorageQueryFailedError("correlation_report", err)
		}
		categories[c] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailedError("correlation_report", err)
	}
	return categories, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
