// internal/common/errors/errors_test.go
package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIncludesDetails(t *testing.T) {
	err := NewUnknownCategoryError("shipping")
	assert.Equal(t,
		"StandardError[UNKNOWN_CATEGORY]: Completion returned an unmapped problem category (category: shipping)",
		err.Error())
}

func TestErrorWithoutDetails(t *testing.T) {
	err := &StandardError{Code: ErrCodeClassificationFailed, Message: "Record classification failed"}
	assert.Equal(t, "StandardError[CLASSIFICATION_FAILED]: Record classification failed", err.Error())
}

// The offending value must survive one level of wrapping, since callers see
// the outer classification error, not the per-attempt cause.
func TestWrappedErrorSurfacesInnerDetails(t *testing.T) {
	inner := NewUnknownCategoryError("shipping")
	outer := NewClassificationFailedError("r1", inner)

	assert.Contains(t, outer.Error(), "shipping")
	assert.Contains(t, outer.Error(), "sourceId: r1")
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeUnknownCategory))
	assert.True(t, IsRetryableErrorCode(ErrCodeCompletionAPIFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeClassificationFailed))
}
