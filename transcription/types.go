// Package transcription turns normalized audio into text via pluggable
// speech-to-text providers, with per-attempt timeouts, classified retries
// and availability-based fallback between registered providers.
package transcription

// Request holds parameters for a transcription call.
type Request struct {
	// Audio is the normalized WAV payload.
	Audio []byte `json:"-"`
	// Locale is the expected language of the audio (e.g. "es-ES").
	Locale string `json:"locale,omitempty"`
}

// Result holds the outcome of a transcription call.
type Result struct {
	// Text is the full transcript.
	Text string `json:"text"`
	// Confidence is the engine's quality signal in [0,1].
	Confidence float64 `json:"confidence"`
	// LowConfidence flags transcripts below the configured floor. The
	// call still succeeds; reviewers and scoring see the flag.
	LowConfidence bool `json:"low_confidence"`
	// Provider names the backend that produced the transcript.
	Provider string `json:"provider"`
	// Language is the detected or requested language.
	Language string `json:"language,omitempty"`
	// Duration is the audio duration in seconds, when reported.
	Duration float64 `json:"duration,omitempty"`
}
