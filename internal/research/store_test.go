// internal/research/store_test.go
package research

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-insights/internal/common/database"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/models"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS interview_participants").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := NewStore(context.Background(), &database.PostgresClient{DB: db}, logger.NewNoOpLogger())
	require.NoError(t, err)
	return store, mock
}

func testParticipant() *models.InterviewParticipant {
	budget := 150
	return &models.InterviewParticipant{
		ParticipantID:    "P007",
		InterviewDate:    time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		StoreVertical:    "apparel",
		MonthlyGMVRange:  "10k-50k",
		StoreAgeMonths:   18,
		TeamSize:         3,
		AppCount:         12,
		MonthlyAppBudget: &budget,
		BetaTester:       true,
	}
}

func TestSaveParticipantUpsert(t *testing.T) {
	store, mock := newTestStore(t)
	p := testParticipant()

	mock.ExpectExec(`INSERT INTO interview_participants.*ON CONFLICT \(participant_id\) DO UPDATE`).
		WithArgs(p.ParticipantID, p.InterviewDate, p.StoreVertical, p.MonthlyGMVRange,
			p.StoreAgeMonths, p.TeamSize, p.AppCount, p.MonthlyAppBudget, p.BetaTester).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := store.SaveParticipant(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "P007", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetParticipantNotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT participant_id, interview_date").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"participant_id", "interview_date", "store_vertical", "monthly_gmv_range",
			"store_age_months", "team_size", "app_count", "monthly_app_budget", "beta_tester",
		}))

	p, err := store.GetParticipant(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetParticipantRoundTrip(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery("SELECT participant_id, interview_date").
		WithArgs("P007").
		WillReturnRows(sqlmock.NewRows([]string{
			"participant_id", "interview_date", "store_vertical", "monthly_gmv_range",
			"store_age_months", "team_size", "app_count", "monthly_app_budget", "beta_tester",
		}).AddRow("P007", time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC), "apparel", "10k-50k",
			18, 3, 12, 150, true))

	p, err := store.GetParticipant(context.Background(), "P007")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "apparel", p.StoreVertical)
	require.NotNil(t, p.MonthlyAppBudget)
	assert.Equal(t, 150, *p.MonthlyAppBudget)
	assert.True(t, p.BetaTester)
}

func TestSaveInsightReturnsRowID(t *testing.T) {
	store, mock := newTestStore(t)
	low, high := 20, 40
	insight := &models.InterviewInsight{
		InterviewID:      "iv42_0",
		ParticipantID:    "P007",
		PainCategory:     models.CategoryAnalytics,
		PainSummary:      "No per-product margin view",
		VerbatimQuotes:   []string{"I export everything to sheets"},
		FrustrationLevel: 4,
		Frequency:        models.FrequencyDaily,
		BusinessImpact:   models.ImpactHigh,
		AppsTried:        []string{"Lifetimely"},
		WTPAmountLow:     &low,
		WTPAmountHigh:    &high,
		WTPQuote:         "$20-$40",
	}

	mock.ExpectQuery(`INSERT INTO interview_insights.*RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := store.SaveInsight(context.Background(), insight)
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func insightRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"interview_id", "participant_id", "recording_url", "pain_category", "pain_summary",
		"verbatim_quotes", "frustration_level", "frequency", "business_impact",
		"current_workaround", "apps_tried", "ideal_solution", "wtp_amount_low",
		"wtp_amount_high", "wtp_quote", "interviewer_notes", "follow_up_candidate",
	})
}

func TestGetInsightsByCategory(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT.*FROM interview_insights WHERE pain_category = \$1`).
		WithArgs("analytics").
		WillReturnRows(insightRows().AddRow(
			"iv42_0", "P007", nil, "analytics", "No per-product margin view",
			[]byte(`["I export everything to sheets"]`), 4, "daily", "high",
			"spreadsheets", []byte(`["Lifetimely"]`), "built-in margins", 20,
			40, "$20-$40", "Auto-extracted from transcript. Urgency: 4/5", false))

	insights, err := store.GetInsightsByCategory(context.Background(), models.CategoryAnalytics)
	require.NoError(t, err)
	require.Len(t, insights, 1)

	got := insights[0]
	assert.Equal(t, models.CategoryAnalytics, got.PainCategory)
	assert.Equal(t, models.FrequencyDaily, got.Frequency)
	assert.Equal(t, []string{"I export everything to sheets"}, got.VerbatimQuotes)
	assert.Equal(t, []string{"Lifetimely"}, got.AppsTried)
	require.NotNil(t, got.WTPAmountLow)
	assert.Equal(t, 20, *got.WTPAmountLow)
	require.NotNil(t, got.WTPAmountHigh)
	assert.Equal(t, 40, *got.WTPAmountHigh)
}

func TestGetCategorySummary(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`GROUP BY pain_category`).
		WillReturnRows(sqlmock.NewRows([]string{
			"pain_category", "count", "avg_frustration", "wtp_count", "avg_wtp",
		}).
			AddRow("analytics", 3, 4.3333, 2, 27.5).
			AddRow("inventory", 1, 3.0, 0, nil))

	summary, err := store.GetCategorySummary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)

	analytics := summary["analytics"]
	assert.Equal(t, 3, analytics.Count)
	assert.Equal(t, 4.33, analytics.AvgFrustration)
	assert.Equal(t, 2, analytics.WTPCount)
	require.NotNil(t, analytics.AvgWTP)
	assert.Equal(t, 27.5, *analytics.AvgWTP)

	inventory := summary["inventory"]
	assert.Nil(t, inventory.AvgWTP)
}

func TestGetStats(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM interview_participants$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM interview_insights$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))
	mock.ExpectQuery(`FROM interview_participants WHERE beta_tester = TRUE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM interview_insights\s+WHERE wtp_amount_low`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`MIN\(wtp_amount_low\)`).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "min", "max"}).AddRow(31.666, 20, 50))

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalParticipants)
	assert.Equal(t, 10, stats.TotalInsights)
	assert.Equal(t, 2.5, stats.AvgInsightsPerInterview)
	assert.Equal(t, 2, stats.BetaTesters)
	assert.Equal(t, 3, stats.InsightsWithWTP)
	assert.Equal(t, 30.0, stats.WTPRate)
	require.NotNil(t, stats.AvgWTPAmount)
	assert.Equal(t, 31.67, *stats.AvgWTPAmount)
	require.NotNil(t, stats.WTPRangeLow)
	assert.Equal(t, 20, *stats.WTPRangeLow)
	require.NotNil(t, stats.WTPRangeHigh)
	assert.Equal(t, 50, *stats.WTPRangeHigh)
}

func TestGenerateCorrelationReport(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT DISTINCT pain_category FROM interview_insights$`).
		WillReturnRows(sqlmock.NewRows([]string{"pain_category"}).
			AddRow("analytics").AddRow("inventory"))
	mock.ExpectQuery(`SELECT DISTINCT pain_category FROM interview_insights\s+WHERE wtp_amount_low`).
		WillReturnRows(sqlmock.NewRows([]string{"pain_category"}).AddRow("analytics"))

	report, err := store.GenerateCorrelationReport(context.Background(), map[string]bool{
		"analytics": true,
		"payments":  true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"analytics"}, report.Validated)
	assert.ElementsMatch(t, []string{"inventory"}, report.InterviewOnly)
	assert.ElementsMatch(t, []string{"payments"}, report.ScrapedOnly)
	assert.ElementsMatch(t, []string{"analytics"}, report.WTPValidated)
	assert.False(t, report.GeneratedAt.IsZero())
}
