// internal/models/interview_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestWTPMidpoint(t *testing.T) {
	tests := []struct {
		name    string
		low     *int
		high    *int
		want    float64
		present bool
	}{
		{name: "both bounds", low: intPtr(20), high: intPtr(40), want: 30.0, present: true},
		{name: "low only", low: intPtr(20), want: 20.0, present: true},
		{name: "high only", high: intPtr(40), want: 40.0, present: true},
		{name: "neither", present: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insight := &InterviewInsight{WTPAmountLow: tt.low, WTPAmountHigh: tt.high}
			got, ok := insight.WTPMidpoint()
			assert.Equal(t, tt.present, ok)
			if tt.present {
				assert.Equal(t, tt.want, got)
				assert.True(t, insight.HasWTPData())
			} else {
				assert.False(t, insight.HasWTPData())
			}
		})
	}
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, FrequencyDaily.IsValid())
	assert.True(t, FrequencyOccasionally.IsValid())
	assert.False(t, InterviewFrequency("hourly").IsValid())

	assert.True(t, ImpactHigh.IsValid())
	assert.False(t, BusinessImpact("critical").IsValid())
}
