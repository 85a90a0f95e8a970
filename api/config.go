package api

import "fmt"

// Config holds ingestion API configuration.
type Config struct {
	// RateLimitPerMinute caps submissions per client IP per minute.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 240
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("api.rate_limit_per_minute must be non-negative (got: %d)", c.RateLimitPerMinute)
	}
	return nil
}
