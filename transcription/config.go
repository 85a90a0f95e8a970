package transcription

import (
	"fmt"
	"time"
)

// WhisperConfig configures the faster-whisper HTTP sidecar provider.
type WhisperConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
}

// Config holds transcription orchestrator settings.
type Config struct {
	// Provider is the primary backend name.
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Locale is the default expected language when a submission carries none.
	Locale string `yaml:"locale" mapstructure:"locale"`

	// MaxAttempts bounds retries per provider (including the first call).
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`

	// AttemptTimeout bounds each individual engine call, e.g. "30s".
	AttemptTimeout string `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// ConfidenceFloor flags (never fails) transcripts below this value.
	ConfidenceFloor float64 `yaml:"confidence_floor" mapstructure:"confidence_floor"`

	Whisper WhisperConfig `yaml:"whisper" mapstructure:"whisper"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "whisper"
	}
	if c.Locale == "" {
		c.Locale = "es-ES"
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.AttemptTimeout == "" {
		c.AttemptTimeout = "30s"
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = 0.6
	}
	if c.Whisper.URL == "" {
		c.Whisper.URL = "http://localhost:8387"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "base"
	}
	if c.Whisper.Timeout == "" {
		c.Whisper.Timeout = "120s"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("transcription.max_attempts must be >= 1, got %d", c.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.AttemptTimeout); err != nil {
		return fmt.Errorf("transcription.attempt_timeout: %w", err)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("transcription.confidence_floor must be in [0,1], got %v", c.ConfidenceFloor)
	}
	if _, err := time.ParseDuration(c.Whisper.Timeout); err != nil {
		return fmt.Errorf("transcription.whisper.timeout: %w", err)
	}
	return nil
}

// AttemptTimeoutValue returns the parsed per-attempt timeout.
func (c *Config) AttemptTimeoutValue() time.Duration {
	d, err := time.ParseDuration(c.AttemptTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
