// internal/classifier/transcript.go
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "merchant-insights/internal/common/errors"
	"merchant-insights/internal/common/logger"
	"merchant-insights/internal/llm"
	"merchant-insights/internal/models"
)

const transcriptTruncationMarker = "\n\n[Transcript truncated...]"

const transcriptPromptTemplate = `Analyze this interview transcript with a Shopify merchant. Extract all pain points, insights, and business signals.

<transcript>
%s
</transcript>

For EACH distinct pain point or insight mentioned, extract the information below. Look for:
- Frustrations with Shopify or apps
- Feature requests or wishes
- Workflow inefficiencies
- Pricing complaints
- Integration issues

Respond with ONLY valid JSON, no other text:

{
  "pain_points": [
    {
      "category": "<category from: admin, analytics, marketing, loyalty, payments, fulfillment, inventory, customer_support, design, seo, integrations, performance, pricing, other>",
      "summary": "<1-2 sentence description of the pain point>",
      "verbatim_quote": "<exact quote from transcript that shows this pain point>",
      "frustration_level": <1-5, where 5 is most frustrated>,
      "urgency_score": <1-5, where 5 is most urgent>,
      "frequency": "<daily|weekly|monthly|occasionally>",
      "business_impact": "<high|medium|low>",
      "current_workaround": "<what they're doing to cope, or null>",
      "competitor_mentions": ["<apps or tools mentioned as alternatives>"]
    }
  ],
  "wtp_signals": [
    {
      "context": "<what solution they'd pay for>",
      "amount_mentioned": "<dollar amount if stated, or null>",
      "verbatim_quote": "<exact quote>",
      "confidence": "<high|medium|low>"
    }
  ],
  "participant_profile": {
    "store_vertical": "<their product category if mentioned>",
    "app_count_mentioned": <number if mentioned, or null>,
    "monthly_app_spend": "<if mentioned>",
    "team_size": "<if mentioned>",
    "key_quotes": ["<notable quotes for reference>"]
  }
}

Important:
- Extract ALL distinct pain points, not just one
- Use exact quotes from the transcript
- Only include wtp_signals if there's actual evidence of willingness to pay
- If information is not mentioned, use null or empty arrays`

// ExtractedPainPoint is one pain point pulled out of a transcript.
type ExtractedPainPoint struct {
	Category           string   `json:"category"`
	Summary            string   `json:"summary"`
	VerbatimQuote      string   `json:"verbatim_quote"`
	FrustrationLevel   int      `json:"frustration_level"`
	UrgencyScore       int      `json:"urgency_score"`
	Frequency          string   `json:"frequency"`
	BusinessImpact     string   `json:"business_impact"`
	CurrentWorkaround  *string  `json:"current_workaround"`
	CompetitorMentions []string `json:"competitor_mentions"`
}

// ExtractedWTPSignal is a willingness-to-pay signal from a transcript.
type ExtractedWTPSignal struct {
	Context         string  `json:"context"`
	AmountMentioned *string `json:"amount_mentioned"`
	VerbatimQuote   string  `json:"verbatim_quote"`
	Confidence      string  `json:"confidence"`
}

// ExtractedProfile is participant profile information from a transcript.
type ExtractedProfile struct {
	StoreVertical     string   `json:"store_vertical"`
	AppCountMentioned *int     `json:"app_count_mentioned"`
	MonthlyAppSpend   string   `json:"monthly_app_spend"`
	TeamSize          string   `json:"team_size"`
	KeyQuotes         []string `json:"key_quotes"`
}

// TranscriptAnalysis is the full structured output for one transcript.
type TranscriptAnalysis struct {
	PainPoints         []ExtractedPainPoint `json:"pain_points"`
	WTPSignals         []ExtractedWTPSignal `json:"wtp_signals"`
	ParticipantProfile ExtractedProfile     `json:"participant_profile"`
	AnalyzedAt         time.Time            `json:"analyzed_at"`
	TranscriptSource   string               `json:"transcript_source"`
}

// TranscriptClassifier extracts structured interview insights from raw
// transcript text.
type TranscriptClassifier struct {
	llm    llm.CompletionClient
	config Config
	logger logger.Logger
}

func NewTranscriptClassifier(client llm.CompletionClient, cfg Config, log logger.Logger) *TranscriptClassifier {
	return &TranscriptClassifier{
		llm:    client,
		config: cfg,
		logger: log,
	}
}

// ClassifyTranscript analyzes a transcript with the same retry budget the
// record classifier uses. Transcripts over the configured limit are
// truncated with an explicit marker so the model knows text is missing.
func (t *TranscriptClassifier) ClassifyTranscript(ctx context.Context, transcript *models.Transcript) (*TranscriptAnalysis, error) {
	text := transcript.FullText
	if len(text) > t.config.TranscriptLimit {
		text = text[:t.config.TranscriptLimit] + transcriptTruncationMarker
	}
	prompt := fmt.Sprintf(transcriptPromptTemplate, text)

	var lastErr error
	delay := t.config.BackoffBase
	for attempt := 1; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			if delay > t.config.BackoffMax {
				delay = t.config.BackoffMax
			}
		}

		analysis, err := t.classifyOnce(ctx, transcript, prompt)
		if err == nil {
			return analysis, nil
		}
		lastErr = err

		t.logger.Warn("Transcript analysis attempt failed", map[string]interface{}{
			"sourceFile": transcript.SourceFile,
			"attempt":    attempt,
			"error":      err.Error(),
		})

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (t *TranscriptClassifier) classifyOnce(ctx context.Context, transcript *models.Transcript, prompt string) (*TranscriptAnalysis, error) {
	raw, err := t.llm.Complete(ctx, prompt, t.config.TranscriptTokens)
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSONResponse(raw)

	var analysis TranscriptAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, apperrors.NewInvalidModelOutputError(fmt.Sprintf("malformed JSON: %s", err))
	}

	for i := range analysis.PainPoints {
		pp := &analysis.PainPoints[i]
		pp.FrustrationLevel = clampScore(pp.FrustrationLevel)
		pp.UrgencyScore = clampScore(pp.UrgencyScore)
	}

	analysis.AnalyzedAt = time.Now().UTC()
	analysis.TranscriptSource = transcript.SourceFile
	return &analysis, nil
}

// clampScore normalizes a 1..5 score. After unmarshal a missing key and an
// explicit 0 are the same value, so everything below 1 gets the neutral
// midpoint rather than being pinned to 1.
func clampScore(v int) int {
	if v < 1 {
		return 3
	}
	if v > 5 {
		return 5
	}
	return v
}

// ConvertToInterviewInsights turns extracted pain points into storable
// interview insights. Pain points with a category outside the closed set
// are dropped with a log line rather than coerced; frequency and impact
// fall back to their neutral values. The first WTP signal whose context
// mentions the pain point's category or summary contributes the quote and
// any parsed dollar bounds.
func (t *TranscriptClassifier) ConvertToInterviewInsights(analysis *TranscriptAnalysis, interviewID, participantID string) []*models.InterviewInsight {
	insights := make([]*models.InterviewInsight, 0, len(analysis.PainPoints))

	for i, pp := range analysis.PainPoints {
		category, err := models.ParseCategory(pp.Category)
		if err != nil {
			t.logger.Warn("Dropping pain point with unknown category", map[string]interface{}{
				"category":    pp.Category,
				"interviewId": interviewID,
			})
			continue
		}

		frequency := models.InterviewFrequency(pp.Frequency)
		if !frequency.IsValid() {
			frequency = models.FrequencyOccasionally
		}
		impact := models.BusinessImpact(pp.BusinessImpact)
		if !impact.IsValid() {
			impact = models.ImpactMedium
		}

		var wtpLow, wtpHigh *int
		var wtpQuote string
		for _, wtp := range analysis.WTPSignals {
			wtpContext := strings.ToLower(wtp.Context)
			if !strings.Contains(wtpContext, strings.ToLower(pp.Category)) &&
				!strings.Contains(wtpContext, strings.ToLower(pp.Summary)) {
				continue
			}
			wtpQuote = wtp.VerbatimQuote
			if wtp.AmountMentioned != nil {
				wtpLow, wtpHigh = parseWTPAmount(*wtp.AmountMentioned)
			}
			break
		}

		var quotes []string
		if pp.VerbatimQuote != "" {
			quotes = []string{pp.VerbatimQuote}
		}
		workaround := ""
		if pp.CurrentWorkaround != nil {
			workaround = *pp.CurrentWorkaround
		}

		insights = append(insights, &models.InterviewInsight{
			InterviewID:       fmt.Sprintf("%s_%d", interviewID, i),
			ParticipantID:     participantID,
			PainCategory:      category,
			PainSummary:       pp.Summary,
			VerbatimQuotes:    quotes,
			FrustrationLevel:  pp.FrustrationLevel,
			Frequency:         frequency,
			BusinessImpact:    impact,
			CurrentWorkaround: workaround,
			AppsTried:         pp.CompetitorMentions,
			WTPAmountLow:      wtpLow,
			WTPAmountHigh:     wtpHigh,
			WTPQuote:          wtpQuote,
			InterviewerNotes:  fmt.Sprintf("Auto-extracted from transcript. Urgency: %d/5", pp.UrgencyScore),
		})
	}

	return insights
}

// parseWTPAmount parses dollar amounts like "$30", "30" and ranges like
// "$20-$40". Unparseable input yields nil bounds.
func parseWTPAmount(amount string) (low, high *int) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(amount, "$", ""), ",", "")
	if strings.Contains(cleaned, "-") {
		parts := strings.SplitN(cleaned, "-", 2)
		lo, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		hi, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return nil, nil
		}
		l, h := int(lo), int(hi)
		return &l, &h
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return nil, nil
	}
	n := int(v)
	return &n, &n
}
