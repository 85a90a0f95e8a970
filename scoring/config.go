package scoring

import "fmt"

// Config holds scorer settings.
type Config struct {
	// RubricVersion selects the versioned rule set applied to transcripts.
	RubricVersion string `yaml:"rubric_version" mapstructure:"rubric_version"`

	// MinTokens is the smallest transcript (in whitespace tokens) that can
	// be scored at all.
	MinTokens int `yaml:"min_tokens" mapstructure:"min_tokens"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.RubricVersion == "" {
		c.RubricVersion = DefaultRubricVersion
	}
	if c.MinTokens == 0 {
		c.MinTokens = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if _, ok := rubrics[c.RubricVersion]; !ok {
		return fmt.Errorf("scoring.rubric_version %q is not a known rubric", c.RubricVersion)
	}
	if c.MinTokens < 1 {
		return fmt.Errorf("scoring.min_tokens must be >= 1, got %d", c.MinTokens)
	}
	return nil
}
