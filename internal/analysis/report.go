// internal/analysis/report.go
package analysis

import (
	"fmt"
	"strings"

	"merchant-insights/internal/models"
)

// FormatOpportunityReport renders ranked opportunities as a plain-text
// report for terminal output.
func FormatOpportunityReport(opportunities []*models.RankedOpportunity) string {
	lines := []string{
		strings.Repeat("=", 80),
		"RANKED PRODUCT OPPORTUNITIES",
		strings.Repeat("=", 80),
		"",
	}

	for i, opp := range opportunities {
		lines = append(lines,
			fmt.Sprintf("#%d: %s", i+1, strings.ToUpper(string(opp.Category))),
			strings.Repeat("-", 40),
			fmt.Sprintf("Total Score: %.1f/100", opp.TotalScore),
			fmt.Sprintf("  Base Score: %.1f (scraped data)", opp.BaseScore),
			fmt.Sprintf("  Interview Bonus: %.1f", opp.InterviewBonus),
			"",
			"Scraped Data:",
			fmt.Sprintf("  Count: %d mentions", opp.ScrapedCount),
			fmt.Sprintf("  Avg Frustration: %.1f/5", opp.AvgFrustration),
			fmt.Sprintf("  WTP Signals: %d", opp.WTPSignals),
			"",
		)

		if opp.InterviewValidated {
			lines = append(lines,
				"Interview Validation: YES",
				fmt.Sprintf("  Interviews: %d", opp.InterviewCount),
				fmt.Sprintf("  WTP Confirmed: %s", yesNo(opp.InterviewWTPConfirmed)),
			)
			if opp.InterviewAvgWTP != nil {
				lines = append(lines, fmt.Sprintf("  Avg WTP: $%.0f/month", *opp.InterviewAvgWTP))
			}
			if opp.BusinessImpact != "" {
				lines = append(lines, fmt.Sprintf("  Business Impact: %s", strings.ToUpper(string(opp.BusinessImpact))))
			}
			if len(opp.KeyQuotes) > 0 {
				lines = append(lines, "  Key Quotes:")
				quotes := opp.KeyQuotes
				if len(quotes) > 3 {
					quotes = quotes[:3]
				}
				for _, quote := range quotes {
					if len(quote) > 100 {
						lines = append(lines, fmt.Sprintf("    - %q...", quote[:100]))
					} else {
						lines = append(lines, fmt.Sprintf("    - %q", quote))
					}
				}
			}
		} else {
			lines = append(lines, "Interview Validation: NO (not yet validated)")
		}

		lines = append(lines, "", "")
	}

	return strings.Join(lines, "\n")
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
