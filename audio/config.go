package audio

import (
	"fmt"

	"github.com/cometik/assessd/util"
)

// Config holds audio normalization settings.
type Config struct {
	// MaxBytes is the largest accepted raw payload, e.g. "10MB".
	MaxBytes string `yaml:"max_bytes" mapstructure:"max_bytes"`

	// TargetSampleRate is the output sample rate in Hz.
	TargetSampleRate int `yaml:"target_sample_rate" mapstructure:"target_sample_rate"`

	// FFmpegPath is the ffmpeg binary used for non-WAV containers.
	FFmpegPath string `yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxBytes == "" {
		c.MaxBytes = "10MB"
	}
	if c.TargetSampleRate == 0 {
		c.TargetSampleRate = 16000
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if util.ParseSize(c.MaxBytes, -1) <= 0 {
		return fmt.Errorf("audio.max_bytes %q is not a valid size", c.MaxBytes)
	}
	if c.TargetSampleRate < 8000 || c.TargetSampleRate > 48000 {
		return fmt.Errorf("audio.target_sample_rate must be between 8000 and 48000, got %d", c.TargetSampleRate)
	}
	return nil
}

// MaxBytesValue returns the parsed byte ceiling.
func (c *Config) MaxBytesValue() int64 {
	return util.ParseSize(c.MaxBytes, 10<<20)
}
