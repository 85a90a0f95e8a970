package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Input errors. Rejected synchronously at the boundary; submissions that
// fail with one of these never create a response record.
const (
	// ErrCodeInvalidInput indicates the request shape is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodePayloadTooLarge indicates the audio payload exceeds the byte ceiling.
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrCodeUnsupportedAudioFormat indicates content sniffing could not
	// identify a decodable container or codec.
	ErrCodeUnsupportedAudioFormat ErrorCode = "UNSUPPORTED_AUDIO_FORMAT"
	// ErrCodeCorruptAudio indicates decoding produced zero-length or error output.
	ErrCodeCorruptAudio ErrorCode = "CORRUPT_AUDIO"
)

// Transient errors. Retried internally; when retries exhaust, the attempt is
// marked failed with the specific code and the key is resubmittable.
const (
	// ErrCodeTranscriptionUnavailable indicates the transcription engine
	// failed after all retries.
	ErrCodeTranscriptionUnavailable ErrorCode = "TRANSCRIPTION_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeDatabaseError indicates a backing-store error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeServiceUnavailable indicates a collaborator is temporarily down.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Logical errors. Terminal for the attempt but clinically meaningful:
// distinct from transient failure so a reviewer can tell "the child didn't
// speak enough" from "the system broke".
const (
	// ErrCodeInsufficientTranscript indicates the transcript is empty or
	// below the minimum token count required for scoring.
	ErrCodeInsufficientTranscript ErrorCode = "INSUFFICIENT_TRANSCRIPT"
)

// Concurrency and lifecycle errors.
const (
	// ErrCodeAttemptInProgress indicates another attempt for the same
	// (document, scene, question) key is still being processed.
	ErrCodeAttemptInProgress ErrorCode = "ATTEMPT_IN_PROGRESS"
	// ErrCodeCancelled indicates the in-flight attempt was cancelled
	// during shutdown or caller disconnect.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTranscriptionUnavailable: true,
	ErrCodeTimeout:                  true,
	ErrCodeDatabaseError:            true,
	ErrCodeServiceUnavailable:       true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
