// Package errors provides standardized error handling for the insight pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeInvalidModelOutput   ErrorCode = "INVALID_MODEL_OUTPUT"
	ErrCodeUnknownCategory      ErrorCode = "UNKNOWN_CATEGORY"
	ErrCodeInvalidInsight       ErrorCode = "INVALID_INSIGHT"

	ErrCodeCompletionAPIFailed ErrorCode = "COMPLETION_API_FAILED"
	ErrCodeCompletionTimeout   ErrorCode = "COMPLETION_TIMEOUT"

	ErrCodeStorageConnectionFailed ErrorCode = "STORAGE_CONNECTION_FAILED"
	ErrCodeStorageWriteFailed      ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeStorageQueryFailed      ErrorCode = "STORAGE_QUERY_FAILED"
	ErrCodeRemoteAPIFailed         ErrorCode = "REMOTE_API_FAILED"

	ErrCodeTranscriptTooShort ErrorCode = "TRANSCRIPT_TOO_SHORT"
	ErrCodeParticipantMissing ErrorCode = "PARTICIPANT_MISSING"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewClassificationFailedError creates a non-retryable classification error.
// Raised after all completion attempts for a record are exhausted.
func NewClassificationFailedError(sourceID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeClassificationFailed,
		Message:   "Record classification failed",
		Details:   fmt.Sprintf("sourceId: %s, error: %s", sourceID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidModelOutputError creates a retryable model output error.
func NewInvalidModelOutputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidModelOutput,
		Message:   "Completion output failed schema validation",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownCategoryError creates a retryable category error. The model is
// given the closed category list in the prompt, so a miss is worth a retry.
func NewUnknownCategoryError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownCategory,
		Message:   "Completion returned an unmapped problem category",
		Details:   fmt.Sprintf("category: %s", category),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInsightError creates a retryable insight validation error.
func NewInvalidInsightError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInsight,
		Message:   "Classified insight failed validation",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionAPIFailedError creates a retryable completion service error.
func NewCompletionAPIFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionAPIFailed,
		Message:   "Completion API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompletionTimeoutError creates a retryable completion timeout error.
func NewCompletionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeCompletionTimeout,
		Message:   "Completion API timeout",
		Details:   "call exceeded configured timeout",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageConnectionFailedError creates a retryable storage connection error.
func NewStorageConnectionFailedError(backend string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageConnectionFailed,
		Message:   "Storage backend connection error",
		Details:   fmt.Sprintf("backend: %s, error: %s", backend, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageWriteFailedError creates a retryable storage write error.
func NewStorageWriteFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageWriteFailed,
		Message:   "Storage write operation failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageQueryFailedError creates a retryable storage query error.
func NewStorageQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageQueryFailed,
		Message:   "Storage query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRemoteAPIFailedError creates a retryable remote tabular API error.
func NewRemoteAPIFailedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteAPIFailed,
		Message:   "Remote tabular API request failed",
		Details:   fmt.Sprintf("status: %d, body: %s", status, body),
		Retryable: status >= 500 || status == 429,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptTooShortError creates a non-retryable transcript error.
func NewTranscriptTooShortError(length int) *StandardError {
	return &StandardError{
		Code:      ErrCodeTranscriptTooShort,
		Message:   "Interview transcript too short to analyze",
		Details:   fmt.Sprintf("length: %d", length),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParticipantMissingError creates a non-retryable participant lookup error.
func NewParticipantMissingError(participantID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParticipantMissing,
		Message:   "Interview participant not found",
		Details:   fmt.Sprintf("participantId: %s", participantID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCompletionAPIFailed,
		ErrCodeInvalidModelOutput,
		ErrCodeUnknownCategory,
		ErrCodeInvalidInsight:
		return 3 // Completion attempts per record

	case ErrCodeCompletionTimeout,
		ErrCodeStorageConnectionFailed:
		return 2

	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "REMOTE"):
		return "STORAGE"
	case strings.Contains(codeStr, "COMPLETION") || strings.Contains(codeStr, "MODEL"):
		return "AI"
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "CATEGORY") || strings.Contains(codeStr, "INSIGHT"):
		return "CLASSIFICATION"
	case strings.Contains(codeStr, "TRANSCRIPT") || strings.Contains(codeStr, "PARTICIPANT"):
		return "RESEARCH"
	default:
		return "OTHER"
	}
}
