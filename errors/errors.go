// Package errors provides unified error handling for the assessment backend.
// It implements structured error types with machine-readable codes, HTTP
// status mapping, and retryable detection following RFC 7807.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Input error constructors ---

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// PayloadTooLarge creates a new AppError for an audio payload above the ceiling.
func PayloadTooLarge(size, limit int64) *AppError {
	return &AppError{
		Code: ErrCodePayloadTooLarge, Message: "Audio payload exceeds the maximum allowed size.",
		HTTPStatus: http.StatusRequestEntityTooLarge, Retryable: false,
		Details: map[string]any{"size_bytes": size, "limit_bytes": limit},
	}
}

// UnsupportedAudioFormat creates a new AppError for undecodable audio content.
func UnsupportedAudioFormat(detected string) *AppError {
	details := make(map[string]any)
	if detected != "" {
		details["detected"] = detected
	}
	return &AppError{
		Code: ErrCodeUnsupportedAudioFormat, Message: "The audio content is not in a supported format.",
		HTTPStatus: http.StatusUnsupportedMediaType, Retryable: false, Details: details,
	}
}

// CorruptAudio creates a new AppError for audio that failed to decode.
func CorruptAudio(cause error) *AppError {
	return &AppError{
		Code: ErrCodeCorruptAudio, Message: "The audio content could not be decoded.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Cause: cause,
	}
}

// --- Transient error constructors ---

// TranscriptionUnavailable creates a new AppError for an exhausted
// transcription engine. Explicitly reported rather than defaulted to empty
// text: a clinical score computed on silence is worse than a visible gap.
func TranscriptionUnavailable(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTranscriptionUnavailable, Message: "The transcription engine is unavailable. The attempt can be resubmitted.",
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that exceeded its deadline.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// DatabaseError creates a new AppError for a backing-store error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A storage error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// ServiceUnavailable creates a new AppError for a collaborator that is
// temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// --- Logical and lifecycle constructors ---

// InsufficientTranscript creates a new AppError for a transcript too short to
// score. Signaled, never converted to a zero score: zero and "could not
// evaluate" are clinically different.
func InsufficientTranscript(tokenCount, minTokens int) *AppError {
	return &AppError{
		Code: ErrCodeInsufficientTranscript, Message: "The transcript is too short to evaluate.",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false,
		Details: map[string]any{"token_count": tokenCount, "min_tokens": minTokens},
	}
}

// AttemptInProgress creates a new AppError for a submission that conflicts
// with an active attempt for the same key. Not auto-retried, to avoid
// duplicate-submission storms.
func AttemptInProgress(documentID, sceneID, questionID string) *AppError {
	return &AppError{
		Code: ErrCodeAttemptInProgress, Message: "An attempt for this question is still being processed. Poll for its completion before retrying.",
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{
			"document_id": documentID,
			"scene_id":    sceneID,
			"question_id": questionID,
		},
	}
}

// Cancelled creates a new AppError for an attempt cancelled mid-pipeline.
func Cancelled(stage string) *AppError {
	return &AppError{
		Code: ErrCodeCancelled, Message: "Processing was cancelled before completion.",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"stage": stage},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
