// internal/analysis/reranker.go
package analysis

import (
	"math"
	"sort"

	"merchant-insights/internal/models"
)

// Base score component weights, 0.65 of the total.
const (
	weightRelevance   = 0.20
	weightFrustration = 0.15
	weightEngagement  = 0.15
	weightWTPSignal   = 0.10
	weightRecency     = 0.05
)

// Interview bonus component weights, 0.35 of the total.
const (
	weightInterviewValidated = 0.15
	weightInterviewWTP       = 0.10
	weightBusinessImpact     = 0.10
)

// Normalization caps for the engagement and WTP components.
const (
	engagementCap = 50
	wtpSignalCap  = 10
)

// Recency is not derivable from the stored schema; every category gets the
// neutral midpoint.
const recencyDefault = 0.5

// Reranker combines scraped insights with interview evidence to produce a
// ranked list of product opportunities. Ranking is recomputed in full on
// every call; nothing here is persisted.
type Reranker struct {
	scrapedByCategory   map[string][]*models.InsightRecord
	interviewByCategory map[string][]*models.InterviewInsight
}

func NewReranker(scraped []*models.InsightRecord, interviews []*models.InterviewInsight) *Reranker {
	r := &Reranker{
		scrapedByCategory:   map[string][]*models.InsightRecord{},
		interviewByCategory: map[string][]*models.InterviewInsight{},
	}
	for _, insight := range scraped {
		// The read-side shape cannot distinguish an absent category from an
		// empty one; both group under other instead of being dropped.
		category := insight.Category
		if category == "" {
			category = string(models.CategoryOther)
		}
		r.scrapedByCategory[category] = append(r.scrapedByCategory[category], insight)
	}
	for _, insight := range interviews {
		category := string(insight.PainCategory)
		r.interviewByCategory[category] = append(r.interviewByCategory[category], insight)
	}
	return r
}

type baseMetrics struct {
	scrapedCount   int
	avgFrustration float64
	wtpSignals     int
	avgEngagement  float64
}

// calculateBaseScore computes the scraped-data score for one category on a
// [0,1] scale, with the per-category metrics that back it.
func (r *Reranker) calculateBaseScore(category string) (float64, baseMetrics) {
	scraped := r.scrapedByCategory[category]
	if len(scraped) == 0 {
		return 0, baseMetrics{}
	}

	maxCount := 0
	for _, v := range r.scrapedByCategory {
		if len(v) > maxCount {
			maxCount = len(v)
		}
	}
	relevance := float64(len(scraped)) / float64(maxCount)

	total := 0
	for _, i := range scraped {
		total += i.FrustrationLevel
	}
	avgFrustration := float64(total) / float64(len(scraped))
	frustrationNorm := avgFrustration / 5.0

	// Engagement is not captured at scrape time; mention count is the proxy.
	engagement := math.Min(float64(len(scraped))/engagementCap, 1.0)

	wtpCount := 0
	for _, i := range scraped {
		if i.WillingnessToPay {
			wtpCount++
		}
	}
	wtpSignal := math.Min(float64(wtpCount)/wtpSignalCap, 1.0)

	score := relevance*weightRelevance +
		frustrationNorm*weightFrustration +
		engagement*weightEngagement +
		wtpSignal*weightWTPSignal +
		recencyDefault*weightRecency

	return score, baseMetrics{
		scrapedCount:   len(scraped),
		avgFrustration: round2(avgFrustration),
		wtpSignals:     wtpCount,
		avgEngagement:  round2(engagement),
	}
}

type interviewMetrics struct {
	validated    bool
	count        int
	wtpConfirmed bool
	avgWTP       *float64
	impact       models.BusinessImpact
	keyQuotes    []string
}

// calculateInterviewBonus computes the interview validation bonus for one
// category. The impact bonus takes the highest impact level seen across the
// category's interviews.
func (r *Reranker) calculateInterviewBonus(category string) (float64, interviewMetrics) {
	interviews := r.interviewByCategory[category]
	if len(interviews) == 0 {
		return 0, interviewMetrics{}
	}

	bonus := weightInterviewValidated

	var wtpInsights []*models.InterviewInsight
	for _, i := range interviews {
		if i.HasWTPData() {
			wtpInsights = append(wtpInsights, i)
		}
	}
	if len(wtpInsights) > 0 {
		bonus += weightInterviewWTP
	}

	var avgWTP *float64
	var amounts []float64
	for _, i := range wtpInsights {
		if mid, ok := i.WTPMidpoint(); ok {
			amounts = append(amounts, mid)
		}
	}
	if len(amounts) > 0 {
		sum := 0.0
		for _, a := range amounts {
			sum += a
		}
		v := round2(sum / float64(len(amounts)))
		avgWTP = &v
	}

	var highestImpact models.BusinessImpact
	hasImpact := func(level models.BusinessImpact) bool {
		for _, i := range interviews {
			if i.BusinessImpact == level {
				return true
			}
		}
		return false
	}
	switch {
	case hasImpact(models.ImpactHigh):
		highestImpact = models.ImpactHigh
		bonus += weightBusinessImpact
	case hasImpact(models.ImpactMedium):
		highestImpact = models.ImpactMedium
		bonus += weightBusinessImpact * 0.5
	case hasImpact(models.ImpactLow):
		highestImpact = models.ImpactLow
		bonus += weightBusinessImpact * 0.2
	}

	var keyQuotes []string
	limit := len(interviews)
	if limit > 3 {
		limit = 3
	}
	for _, insight := range interviews[:limit] {
		quotes := insight.VerbatimQuotes
		if len(quotes) > 2 {
			quotes = quotes[:2]
		}
		keyQuotes = append(keyQuotes, quotes...)
	}
	if len(keyQuotes) > 5 {
		keyQuotes = keyQuotes[:5]
	}

	return bonus, interviewMetrics{
		validated:    true,
		count:        len(interviews),
		wtpConfirmed: len(wtpInsights) > 0,
		avgWTP:       avgWTP,
		impact:       highestImpact,
		keyQuotes:    keyQuotes,
	}
}

// RankOpportunities scores every category seen in either data set and
// returns them sorted by total score descending. Categories outside the
// closed set are dropped here without error.
func (r *Reranker) RankOpportunities() []*models.RankedOpportunity {
	seen := map[string]bool{}
	for c := range r.scrapedByCategory {
		seen[c] = true
	}
	for c := range r.interviewByCategory {
		seen[c] = true
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var opportunities []*models.RankedOpportunity
	for _, categoryStr := range categories {
		category, err := models.ParseCategory(categoryStr)
		if err != nil {
			continue
		}

		baseScore, base := r.calculateBaseScore(categoryStr)
		bonus, interview := r.calculateInterviewBonus(categoryStr)

		totalScore := baseScore*0.65 + bonus

		opportunities = append(opportunities, &models.RankedOpportunity{
			Category:              category,
			BaseScore:             round2(baseScore * 100),
			InterviewBonus:        round2(bonus * 100),
			TotalScore:            round2(totalScore * 100),
			ScrapedCount:          base.scrapedCount,
			AvgFrustration:        base.avgFrustration,
			WTPSignals:            base.wtpSignals,
			AvgEngagement:         base.avgEngagement,
			InterviewValidated:    interview.validated,
			InterviewCount:        interview.count,
			InterviewWTPConfirmed: interview.wtpConfirmed,
			InterviewAvgWTP:       interview.avgWTP,
			BusinessImpact:        interview.impact,
			KeyQuotes:             interview.keyQuotes,
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].TotalScore > opportunities[j].TotalScore
	})
	return opportunities
}

// TopOpportunities returns the n highest ranked opportunities.
func (r *Reranker) TopOpportunities(n int) []*models.RankedOpportunity {
	ranked := r.RankOpportunities()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// ValidatedOpportunities returns only interview-validated opportunities.
func (r *Reranker) ValidatedOpportunities() []*models.RankedOpportunity {
	var out []*models.RankedOpportunity
	for _, opp := range r.RankOpportunities() {
		if opp.InterviewValidated {
			out = append(out, opp)
		}
	}
	return out
}

// WTPConfirmedOpportunities returns opportunities with interview-confirmed
// willingness to pay.
func (r *Reranker) WTPConfirmedOpportunities() []*models.RankedOpportunity {
	var out []*models.RankedOpportunity
	for _, opp := range r.RankOpportunities() {
		if opp.InterviewWTPConfirmed {
			out = append(out, opp)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
