// Package catalog loads the immutable scene and question reference data the
// ingestion boundary validates submissions against. Scenes map to one DSM-5
// pragmatic criterion each and own an ordered list of question IDs.
package catalog

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"

	"github.com/cometik/assessd/scoring"
)

// Config holds catalog settings.
type Config struct {
	// Path is the YAML file describing scenes and questions.
	Path string `yaml:"path" mapstructure:"path"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "./catalog.yml"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

// Scene is one gamified interaction unit.
type Scene struct {
	ID        string            `mapstructure:"scene_id" json:"scene_id"`
	Criterion scoring.Criterion `mapstructure:"criterion" json:"criterion"`
	Questions []string          `mapstructure:"questions" json:"questions"`
}

type fileSchema struct {
	Scenes []Scene `mapstructure:"scenes"`
}

// Catalog is the read-only scene lookup. Safe for concurrent use after Load.
type Catalog struct {
	scenes map[string]Scene
}

// Load reads and validates the catalog file.
func Load(cfg Config) (*Catalog, error) {
	cfg.ApplyDefaults()

	v := viper.New()
	v.SetConfigFile(cfg.Path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", cfg.Path, err)
	}

	var schema fileSchema
	if err := v.Unmarshal(&schema); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", cfg.Path, err)
	}
	if len(schema.Scenes) == 0 {
		return nil, fmt.Errorf("catalog %s declares no scenes", cfg.Path)
	}

	scenes := make(map[string]Scene, len(schema.Scenes))
	for _, s := range schema.Scenes {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog scene with empty scene_id")
		}
		if _, dup := scenes[s.ID]; dup {
			return nil, fmt.Errorf("duplicate scene_id %q", s.ID)
		}
		if !s.Criterion.Valid() {
			return nil, fmt.Errorf("scene %q: unknown criterion %q", s.ID, s.Criterion)
		}
		if len(s.Questions) == 0 {
			return nil, fmt.Errorf("scene %q declares no questions", s.ID)
		}
		seen := make(map[string]bool, len(s.Questions))
		for _, q := range s.Questions {
			if q == "" {
				return nil, fmt.Errorf("scene %q: empty question_id", s.ID)
			}
			if seen[q] {
				return nil, fmt.Errorf("scene %q: duplicate question_id %q", s.ID, q)
			}
			seen[q] = true
		}
		scenes[s.ID] = s
	}

	return &Catalog{scenes: scenes}, nil
}

// Scene returns the scene by ID.
func (c *Catalog) Scene(sceneID string) (Scene, bool) {
	s, ok := c.scenes[sceneID]
	return s, ok
}

// HasQuestion reports whether the question belongs to the scene.
func (c *Catalog) HasQuestion(sceneID, questionID string) bool {
	s, ok := c.scenes[sceneID]
	if !ok {
		return false
	}
	for _, q := range s.Questions {
		if q == questionID {
			return true
		}
	}
	return false
}

// CriterionFor returns the DSM-5 criterion mapped to the scene.
func (c *Catalog) CriterionFor(sceneID string) (scoring.Criterion, bool) {
	s, ok := c.scenes[sceneID]
	if !ok {
		return "", false
	}
	return s.Criterion, true
}

// Scenes returns all scenes sorted by ID.
func (c *Catalog) Scenes() []Scene {
	out := make([]Scene, 0, len(c.scenes))
	for _, s := range c.scenes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
