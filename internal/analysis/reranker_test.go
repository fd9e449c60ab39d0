// internal/analysis/reranker_test.go
package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchant-insights/internal/models"
)

func scrapedInsight(category string, frustration int, wtp bool) *models.InsightRecord {
	return &models.InsightRecord{
		SourceID:         fmt.Sprintf("%s-%d", category, frustration),
		Category:         category,
		FrustrationLevel: frustration,
		WillingnessToPay: wtp,
	}
}

func interviewInsight(category models.ProblemCategory, impact models.BusinessImpact, quotes []string, wtpLow, wtpHigh *int) *models.InterviewInsight {
	return &models.InterviewInsight{
		InterviewID:      "iv1_0",
		ParticipantID:    "P001",
		PainCategory:     category,
		PainSummary:      "summary",
		VerbatimQuotes:   quotes,
		FrustrationLevel: 4,
		Frequency:        models.FrequencyDaily,
		BusinessImpact:   impact,
		WTPAmountLow:     wtpLow,
		WTPAmountHigh:    wtpHigh,
	}
}

func intPtr(v int) *int { return &v }

func TestWeightAllocation(t *testing.T) {
	base := weightRelevance + weightFrustration + weightEngagement + weightWTPSignal + weightRecency
	assert.InDelta(t, 0.65, base, 1e-9)

	bonus := weightInterviewValidated + weightInterviewWTP + weightBusinessImpact
	assert.InDelta(t, 0.35, bonus, 1e-9)
}

func TestRankSingleValidatedCategory(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("analytics", 4, true),
	}
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryAnalytics, models.ImpactHigh,
			[]string{"I export everything to sheets"}, intPtr(20), intPtr(40)),
	}

	ranked := NewReranker(scraped, interviews).RankOpportunities()
	require.Len(t, ranked, 1)

	opp := ranked[0]
	assert.Equal(t, models.CategoryAnalytics, opp.Category)

	// relevance 1.0*.20 + frustration .8*.15 + engagement .02*.15
	// + wtp .1*.10 + recency .5*.05 = .358
	assert.InDelta(t, 35.8, opp.BaseScore, 0.01)
	// validated .15 + wtp .10 + high impact .10 = .35
	assert.InDelta(t, 35.0, opp.InterviewBonus, 0.01)
	assert.InDelta(t, 58.27, opp.TotalScore, 0.01)

	assert.Equal(t, 1, opp.ScrapedCount)
	assert.Equal(t, 4.0, opp.AvgFrustration)
	assert.Equal(t, 1, opp.WTPSignals)
	assert.Equal(t, 0.02, opp.AvgEngagement)

	assert.True(t, opp.InterviewValidated)
	assert.True(t, opp.InterviewWTPConfirmed)
	assert.Equal(t, 1, opp.InterviewCount)
	require.NotNil(t, opp.InterviewAvgWTP)
	assert.Equal(t, 30.0, *opp.InterviewAvgWTP)
	assert.Equal(t, models.ImpactHigh, opp.BusinessImpact)
	assert.Equal(t, []string{"I export everything to sheets"}, opp.KeyQuotes)
}

func TestRankScoreBounds(t *testing.T) {
	var scraped []*models.InsightRecord
	for i := 0; i < 60; i++ {
		scraped = append(scraped, scrapedInsight("inventory", 5, true))
	}
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryInventory, models.ImpactHigh, nil, intPtr(50), nil),
	}

	ranked := NewReranker(scraped, interviews).RankOpportunities()
	require.Len(t, ranked, 1)

	opp := ranked[0]
	assert.LessOrEqual(t, opp.BaseScore, 65.0)
	assert.LessOrEqual(t, opp.InterviewBonus, 35.0)
	assert.LessOrEqual(t, opp.TotalScore, 100.0)
	assert.InDelta(t, opp.BaseScore*0.65+opp.InterviewBonus, opp.TotalScore, 0.01)
}

func TestInterviewBonusImpactPrecedence(t *testing.T) {
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryFulfillment, models.ImpactLow, nil, nil, nil),
		interviewInsight(models.CategoryFulfillment, models.ImpactHigh, nil, nil, nil),
		interviewInsight(models.CategoryFulfillment, models.ImpactMedium, nil, nil, nil),
	}

	ranked := NewReranker(nil, interviews).RankOpportunities()
	require.Len(t, ranked, 1)
	assert.Equal(t, models.ImpactHigh, ranked[0].BusinessImpact)
	// validated .15 + high impact .10, no WTP data
	assert.InDelta(t, 25.0, ranked[0].InterviewBonus, 0.01)
	assert.False(t, ranked[0].InterviewWTPConfirmed)
	assert.Nil(t, ranked[0].InterviewAvgWTP)
}

func TestInterviewBonusMediumAndLowTiers(t *testing.T) {
	medium := NewReranker(nil, []*models.InterviewInsight{
		interviewInsight(models.CategoryLoyalty, models.ImpactMedium, nil, nil, nil),
	}).RankOpportunities()
	require.Len(t, medium, 1)
	assert.InDelta(t, 20.0, medium[0].InterviewBonus, 0.01)

	low := NewReranker(nil, []*models.InterviewInsight{
		interviewInsight(models.CategoryLoyalty, models.ImpactLow, nil, nil, nil),
	}).RankOpportunities()
	require.Len(t, low, 1)
	assert.InDelta(t, 17.0, low[0].InterviewBonus, 0.01)
}

func TestUnknownCategoryDropped(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("shipping", 4, false),
		scrapedInsight("analytics", 4, false),
	}

	ranked := NewReranker(scraped, nil).RankOpportunities()
	require.Len(t, ranked, 1)
	assert.Equal(t, models.CategoryAnalytics, ranked[0].Category)
}

func TestEmptyScrapedCategoryFallsBackToOther(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("", 3, false),
	}

	ranked := NewReranker(scraped, nil).RankOpportunities()
	require.Len(t, ranked, 1)
	assert.Equal(t, models.CategoryOther, ranked[0].Category)
}

func TestKeyQuotesCappedAtFive(t *testing.T) {
	quotes := []string{"quote one", "quote two", "quote three"}
	var interviews []*models.InterviewInsight
	for i := 0; i < 4; i++ {
		interviews = append(interviews,
			interviewInsight(models.CategoryMarketing, models.ImpactLow, quotes, nil, nil))
	}

	ranked := NewReranker(nil, interviews).RankOpportunities()
	require.Len(t, ranked, 1)
	// First three interviews contribute two quotes each, capped at five.
	assert.Len(t, ranked[0].KeyQuotes, 5)
	assert.Equal(t, "quote one", ranked[0].KeyQuotes[0])
	assert.Equal(t, "quote two", ranked[0].KeyQuotes[1])
}

func TestRankOrderingIsDeterministic(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("analytics", 3, false),
		scrapedInsight("inventory", 3, false),
	}

	first := NewReranker(scraped, nil).RankOpportunities()
	require.Len(t, first, 2)
	// Equal scores keep the sorted category order.
	assert.Equal(t, models.CategoryAnalytics, first[0].Category)
	assert.Equal(t, models.CategoryInventory, first[1].Category)

	for i := 0; i < 5; i++ {
		again := NewReranker(scraped, nil).RankOpportunities()
		require.Len(t, again, 2)
		assert.Equal(t, first[0].Category, again[0].Category)
		assert.Equal(t, first[1].Category, again[1].Category)
	}
}

func TestRankSortsByTotalScoreDescending(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("analytics", 2, false),
	}
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryInventory, models.ImpactHigh, nil, intPtr(30), nil),
	}

	ranked := NewReranker(scraped, interviews).RankOpportunities()
	require.Len(t, ranked, 2)
	assert.Equal(t, models.CategoryInventory, ranked[0].Category)
	assert.Greater(t, ranked[0].TotalScore, ranked[1].TotalScore)
}

func TestOpportunityFilters(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("analytics", 4, true),
		scrapedInsight("inventory", 3, false),
	}
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryAnalytics, models.ImpactHigh, nil, intPtr(20), intPtr(40)),
		interviewInsight(models.CategoryLoyalty, models.ImpactLow, nil, nil, nil),
	}
	reranker := NewReranker(scraped, interviews)

	top := reranker.TopOpportunities(2)
	assert.Len(t, top, 2)

	validated := reranker.ValidatedOpportunities()
	require.Len(t, validated, 2)
	for _, opp := range validated {
		assert.True(t, opp.InterviewValidated)
	}

	wtp := reranker.WTPConfirmedOpportunities()
	require.Len(t, wtp, 1)
	assert.Equal(t, models.CategoryAnalytics, wtp[0].Category)
}

func TestFormatOpportunityReport(t *testing.T) {
	scraped := []*models.InsightRecord{
		scrapedInsight("analytics", 4, true),
		scrapedInsight("inventory", 3, false),
	}
	interviews := []*models.InterviewInsight{
		interviewInsight(models.CategoryAnalytics, models.ImpactHigh,
			[]string{"I export everything to sheets"}, intPtr(20), intPtr(40)),
	}
	ranked := NewReranker(scraped, interviews).RankOpportunities()

	report := FormatOpportunityReport(ranked)
	assert.Contains(t, report, "RANKED PRODUCT OPPORTUNITIES")
	assert.Contains(t, report, "#1: ANALYTICS")
	assert.Contains(t, report, "Interview Validation: YES")
	assert.Contains(t, report, "Avg WTP: $30/month")
	assert.Contains(t, report, "Business Impact: HIGH")
	assert.Contains(t, report, `"I export everything to sheets"`)
	assert.Contains(t, report, "Interview Validation: NO (not yet validated)")
	assert.True(t, strings.HasPrefix(report, strings.Repeat("=", 80)))
}
