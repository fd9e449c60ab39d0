// internal/classifier/prompt.go
package classifier

import (
	"fmt"
	"strings"

	"merchant-insights/internal/models"
)

const classificationPromptTemplate = `Analyze this Shopify merchant feedback and extract structured insights.

<content>
Title: %s
Source: %s
Content: %s
</content>

Extract the following information in JSON format:

1. problem_statement: A concise 1-2 sentence description of the core problem or need
2. category: Primary category from: admin, analytics, marketing, loyalty, payments, fulfillment, inventory, customer_support, design, seo, integrations, performance, pricing, other
3. secondary_categories: List of other relevant categories (can be empty)
4. frustration_level: 1-5 scale (1=mild annoyance, 5=severe frustration)
5. clarity_score: 1-5 scale of how clearly the problem is described
6. willingness_to_pay: true/false - does this indicate they'd pay for a solution?
7. wtp_quotes: Any quotes that suggest willingness to pay (empty list if none)
8. current_workaround: Any workaround they mention using (null if none)
9. keywords: 3-5 key terms for clustering similar problems

Respond with ONLY valid JSON, no other text:
{
    "problem_statement": "...",
    "category": "...",
    "secondary_categories": [...],
    "frustration_level": N,
    "clarity_score": N,
    "willingness_to_pay": true/false,
    "wtp_quotes": [...],
    "current_workaround": "..." or null,
    "keywords": [...]
}`

// buildPrompt renders the classification prompt for one record, truncating
// content to the configured budget so request cost stays bounded.
func buildPrompt(record *models.RawRecord, contentLimit int) string {
	title := record.Title
	if title == "" {
		title = "No title"
	}

	content := record.Content
	if len(content) > contentLimit {
		content = content[:contentLimit]
	}

	return fmt.Sprintf(classificationPromptTemplate, title, record.Source, content)
}

// cleanJSONResponse strips markdown code fences and surrounding prose so the
// remainder parses as one JSON document.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// Some model responses include extra prose around the JSON.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
