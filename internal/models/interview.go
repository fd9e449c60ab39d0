// internal/models/interview.go
package models

import "time"

// InterviewFrequency is how often the pain point is experienced.
type InterviewFrequency string

const (
	FrequencyDaily        InterviewFrequency = "daily"
	FrequencyWeekly       InterviewFrequency = "weekly"
	FrequencyMonthly      InterviewFrequency = "monthly"
	FrequencyOccasionally InterviewFrequency = "occasionally"
)

// IsValid reports whether the frequency is a known value.
func (f InterviewFrequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOccasionally:
		return true
	}
	return false
}

// BusinessImpact is the impact level of the pain point on the business.
type BusinessImpact string

const (
	ImpactHigh   BusinessImpact = "high"
	ImpactMedium BusinessImpact = "medium"
	ImpactLow    BusinessImpact = "low"
)

// IsValid reports whether the impact is a known value.
func (b BusinessImpact) IsValid() bool {
	switch b {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// InterviewParticipant is an anonymized interview participant, keyed by
// ParticipantID. Saving an existing participant overwrites all fields.
type InterviewParticipant struct {
	ParticipantID    string    `json:"participant_id"`
	InterviewDate    time.Time `json:"interview_date"`
	StoreVertical    string    `json:"store_vertical"`
	MonthlyGMVRange  string    `json:"monthly_gmv_range"`
	StoreAgeMonths   int       `json:"store_age_months"`
	TeamSize         int       `json:"team_size"`
	AppCount         int       `json:"app_count"`
	MonthlyAppBudget *int      `json:"monthly_app_budget,omitempty"`
	BetaTester       bool      `json:"beta_tester"`
}

// InterviewInsight is one structured pain point captured from a merchant
// interview. Append-only; one participant may contribute many.
type InterviewInsight struct {
	InterviewID   string `json:"interview_id"`
	ParticipantID string `json:"participant_id"`
	RecordingURL  string `json:"recording_url,omitempty"`

	PainCategory     ProblemCategory    `json:"pain_category"`
	PainSummary      string             `json:"pain_summary"`
	VerbatimQuotes   []string           `json:"verbatim_quotes,omitempty"`
	FrustrationLevel int                `json:"frustration_level"`
	Frequency        InterviewFrequency `json:"frequency"`
	BusinessImpact   BusinessImpact     `json:"business_impact"`

	CurrentWorkaround string   `json:"current_workaround,omitempty"`
	AppsTried         []string `json:"apps_tried,omitempty"`
	IdealSolution     string   `json:"ideal_solution,omitempty"`

	WTPAmountLow  *int   `json:"wtp_amount_low,omitempty"`
	WTPAmountHigh *int   `json:"wtp_amount_high,omitempty"`
	WTPQuote      string `json:"wtp_quote,omitempty"`

	InterviewerNotes  string `json:"interviewer_notes,omitempty"`
	FollowUpCandidate bool   `json:"follow_up_candidate"`
}

// HasWTPData reports whether either willingness-to-pay bound is present.
func (i *InterviewInsight) HasWTPData() bool {
	return i.WTPAmountLow != nil || i.WTPAmountHigh != nil
}

// WTPMidpoint returns the mean of both WTP bounds when both are present,
// the single present bound otherwise, and false when neither exists.
func (i *InterviewInsight) WTPMidpoint() (float64, bool) {
	switch {
	case i.WTPAmountLow != nil && i.WTPAmountHigh != nil:
		return float64(*i.WTPAmountLow+*i.WTPAmountHigh) / 2, true
	case i.WTPAmountLow != nil:
		return float64(*i.WTPAmountLow), true
	case i.WTPAmountHigh != nil:
		return float64(*i.WTPAmountHigh), true
	}
	return 0, false
}

// CorrelationReport correlates interview findings with scraped insights.
type CorrelationReport struct {
	Validated     []string  `json:"validated"`
	InterviewOnly []string  `json:"interview_only"`
	ScrapedOnly   []string  `json:"scraped_only"`
	WTPValidated  []string  `json:"wtp_validated"`
	GeneratedAt   time.Time `json:"generated_at"`
}
