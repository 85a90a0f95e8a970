package ledger

import (
	"fmt"
	"time"
)

// Config holds pipeline scheduling settings.
type Config struct {
	// MaxConcurrent caps how many pipeline units run at once.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`

	// ShutdownGrace is how long Stop waits for in-flight units before
	// cancelling them, e.g. "10s".
	ShutdownGrace string `yaml:"shutdown_grace" mapstructure:"shutdown_grace"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 8
	}
	if c.ShutdownGrace == "" {
		c.ShutdownGrace = "10s"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.max_concurrent must be >= 1, got %d", c.MaxConcurrent)
	}
	if _, err := time.ParseDuration(c.ShutdownGrace); err != nil {
		return fmt.Errorf("pipeline.shutdown_grace: %w", err)
	}
	return nil
}

// ShutdownGraceValue returns the parsed grace period.
func (c *Config) ShutdownGraceValue() time.Duration {
	d, err := time.ParseDuration(c.ShutdownGrace)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
