// internal/models/insight_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validInsight() *ClassifiedInsight {
	return &ClassifiedInsight{
		SourceID:         "reddit_abc123",
		Source:           SourceReddit,
		ProblemStatement: "Inventory sync constantly breaks between locations",
		Category:         CategoryInventory,
		FrustrationLevel: 4,
		ClarityScore:     5,
	}
}

func TestClassifiedInsightValidate(t *testing.T) {
	t.Run("valid insight passes", func(t *testing.T) {
		assert.NoError(t, validInsight().Validate())
	})

	t.Run("missing source id fails", func(t *testing.T) {
		insight := validInsight()
		insight.SourceID = ""
		assert.Error(t, insight.Validate())
	})

	t.Run("missing problem statement fails", func(t *testing.T) {
		insight := validInsight()
		insight.ProblemStatement = ""
		assert.Error(t, insight.Validate())
	})

	t.Run("invalid category fails", func(t *testing.T) {
		insight := validInsight()
		insight.Category = "shipping"
		assert.Error(t, insight.Validate())
	})

	t.Run("score bounds", func(t *testing.T) {
		for _, level := range []int{1, 2, 3, 4, 5} {
			insight := validInsight()
			insight.FrustrationLevel = level
			insight.ClarityScore = level
			assert.NoError(t, insight.Validate(), "level %d should pass", level)
		}
		for _, level := range []int{0, 6, -1} {
			insight := validInsight()
			insight.FrustrationLevel = level
			assert.Error(t, insight.Validate(), "frustration %d should fail", level)

			insight = validInsight()
			insight.ClarityScore = level
			assert.Error(t, insight.Validate(), "clarity %d should fail", level)
		}
	})
}

func TestCappedContent(t *testing.T) {
	long := make([]byte, MaxRawContentLength+500)
	for i := range long {
		long[i] = 'a'
	}
	record := &RawRecord{Content: string(long)}
	assert.Len(t, record.CappedContent(), MaxRawContentLength)

	record = &RawRecord{Content: "short"}
	assert.Equal(t, "short", record.CappedContent())
}
