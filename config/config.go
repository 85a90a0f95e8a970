package config

import (
	"github.com/cometik/assessd/api"
	"github.com/cometik/assessd/audio"
	"github.com/cometik/assessd/catalog"
	"github.com/cometik/assessd/database"
	"github.com/cometik/assessd/ledger"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/observability"
	"github.com/cometik/assessd/scoring"
	"github.com/cometik/assessd/server"
	"github.com/cometik/assessd/storage"
	"github.com/cometik/assessd/transcription"
)

// Config aggregates the configuration of every component of the service.
type Config struct {
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	API           api.Config           `yaml:"api" mapstructure:"api"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Audio         audio.Config         `yaml:"audio" mapstructure:"audio"`
	Transcription transcription.Config `yaml:"transcription" mapstructure:"transcription"`
	Scoring       scoring.Config       `yaml:"scoring" mapstructure:"scoring"`
	Catalog       catalog.Config       `yaml:"catalog" mapstructure:"catalog"`
	Pipeline      ledger.Config        `yaml:"pipeline" mapstructure:"pipeline"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills unset fields of every section.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.API.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Audio.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Scoring.ApplyDefaults()
	c.Catalog.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section for invalid values.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Audio.Validate(); err != nil {
		return err
	}
	if err := c.Transcription.Validate(); err != nil {
		return err
	}
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	return c.Pipeline.Validate()
}

// configKeys lists the dotted keys bound to environment variables.
var configKeys = []string{
	"server.host",
	"server.port",
	"server.read_timeout",
	"server.write_timeout",
	"server.idle_timeout",
	"server.max_body_size",
	"api.rate_limit_per_minute",
	"logging.level",
	"logging.format",
	"logging.output",
	"database.driver",
	"database.dsn",
	"database.max_open_conns",
	"database.max_idle_conns",
	"database.log_level",
	"storage.base_path",
	"audio.max_bytes",
	"audio.target_sample_rate",
	"audio.ffmpeg_path",
	"transcription.provider",
	"transcription.locale",
	"transcription.max_attempts",
	"transcription.attempt_timeout",
	"transcription.confidence_floor",
	"transcription.whisper.url",
	"transcription.whisper.model",
	"transcription.whisper.timeout",
	"scoring.rubric_version",
	"scoring.min_tokens",
	"catalog.path",
	"pipeline.max_concurrent",
	"pipeline.shutdown_grace",
	"observability.enabled",
	"observability.endpoint",
	"observability.environment",
	"observability.sample_rate",
}
