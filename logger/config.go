package logger

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn, error.
	Level string `yaml:"level" mapstructure:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format" mapstructure:"format"`
	// Output is "stdout" or "stderr".
	Output string `yaml:"output" mapstructure:"output"`
	// NoColor disables ANSI colors in console format.
	NoColor bool `yaml:"no_color" mapstructure:"no_color"`
	// Timestamp enables the timestamp field.
	Timestamp bool `yaml:"timestamp" mapstructure:"timestamp"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}
