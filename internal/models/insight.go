// internal/models/insight.go
package models

import (
	"fmt"
	"time"
)

// ContentSnippetLength is the bounded prefix of original content kept on each
// insight for audit and display.
const ContentSnippetLength = 500

// ClassifiedInsight is the structured result of classifying one RawRecord.
// At most one insight exists per source_id; insights are immutable once
// created.
type ClassifiedInsight struct {
	ID                  string            `json:"id,omitempty"`
	SourceID            string            `json:"source_id"`
	Source              Source            `json:"source"`
	SourceURL           string            `json:"source_url,omitempty"`
	OriginalTitle       string            `json:"original_title,omitempty"`
	ProblemStatement    string            `json:"problem_statement"`
	Category            ProblemCategory   `json:"category"`
	SecondaryCategories []ProblemCategory `json:"secondary_categories,omitempty"`
	FrustrationLevel    int               `json:"frustration_level"`
	ClarityScore        int               `json:"clarity_score"`
	WillingnessToPay    bool              `json:"willingness_to_pay"`
	WTPQuotes           []string          `json:"wtp_quotes,omitempty"`
	CurrentWorkaround   string            `json:"current_workaround,omitempty"`
	Keywords            []string          `json:"keywords,omitempty"`
	ContentSnippet      string            `json:"content_snippet,omitempty"`
	ClassifiedAt        time.Time         `json:"classified_at"`
}

// Validate enforces the scoring bounds. Out-of-range values are an error,
// never a silent clamp.
func (i *ClassifiedInsight) Validate() error {
	if i.SourceID == "" {
		return fmt.Errorf("insight source_id is required")
	}
	if i.ProblemStatement == "" {
		return fmt.Errorf("insight problem_statement is required")
	}
	if !i.Category.IsValid() {
		return fmt.Errorf("insight category %q is not valid", i.Category)
	}
	if i.FrustrationLevel < 1 || i.FrustrationLevel > 5 {
		return fmt.Errorf("frustration_level %d out of range [1,5]", i.FrustrationLevel)
	}
	if i.ClarityScore < 1 || i.ClarityScore > 5 {
		return fmt.Errorf("clarity_score %d out of range [1,5]", i.ClarityScore)
	}
	return nil
}

// InsightRecord is the read-side shape returned by storage backends. The
// category comes back as a raw string; re-parsing into the closed enum is the
// reranker's job, which silently drops unknown values.
type InsightRecord struct {
	ID                string    `json:"id"`
	SourceID          string    `json:"source_id"`
	Source            string    `json:"source"`
	SourceURL         string    `json:"source_url,omitempty"`
	OriginalTitle     string    `json:"original_title,omitempty"`
	ProblemStatement  string    `json:"problem_statement"`
	Category          string    `json:"category"`
	FrustrationLevel  int       `json:"frustration_level"`
	ClarityScore      int       `json:"clarity_score"`
	WillingnessToPay  bool      `json:"willingness_to_pay"`
	WTPQuotes         []string  `json:"wtp_quotes,omitempty"`
	CurrentWorkaround string    `json:"current_workaround,omitempty"`
	Keywords          []string  `json:"keywords,omitempty"`
	ContentSnippet    string    `json:"content_snippet,omitempty"`
	ClassifiedAt      time.Time `json:"classified_at"`
}
