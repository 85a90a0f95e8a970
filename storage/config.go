package storage

// Config holds storage configuration.
type Config struct {
	// BasePath is the root directory for the local filesystem backend.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BasePath == "" {
		c.BasePath = "./data/clinical"
	}
}
