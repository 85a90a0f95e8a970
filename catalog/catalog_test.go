package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cometik/assessd/scoring"
)

const validCatalog = `
scenes:
  - scene_id: S1
    criterion: social_use
    questions: [Q1, Q2]
  - scene_id: S2
    criterion: non_literal_comprehension
    questions: [Q1]
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write catalog file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(Config{Path: writeCatalog(t, validCatalog)})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	s, ok := c.Scene("S1")
	if !ok {
		t.Fatal("scene S1 not found")
	}
	if s.Criterion != scoring.CriterionSocialUse {
		t.Errorf("S1 criterion = %q, want social_use", s.Criterion)
	}
	if len(s.Questions) != 2 {
		t.Errorf("S1 question count = %d, want 2", len(s.Questions))
	}

	if _, ok := c.Scene("S9"); ok {
		t.Error("unknown scene should not resolve")
	}
}

func TestHasQuestion(t *testing.T) {
	c, err := Load(Config{Path: writeCatalog(t, validCatalog)})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !c.HasQuestion("S1", "Q2") {
		t.Error("S1/Q2 should exist")
	}
	if c.HasQuestion("S2", "Q2") {
		t.Error("S2/Q2 should not exist")
	}
	if c.HasQuestion("S9", "Q1") {
		t.Error("unknown scene should not resolve questions")
	}
}

func TestCriterionFor(t *testing.T) {
	c, err := Load(Config{Path: writeCatalog(t, validCatalog)})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	crit, ok := c.CriterionFor("S2")
	if !ok || crit != scoring.CriterionNonLiteral {
		t.Errorf("S2 criterion = %q ok=%v, want non_literal_comprehension", crit, ok)
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no scenes", "scenes: []"},
		{"unknown criterion", "scenes:\n  - scene_id: S1\n    criterion: empathy\n    questions: [Q1]"},
		{"empty scene id", "scenes:\n  - scene_id: \"\"\n    criterion: social_use\n    questions: [Q1]"},
		{"no questions", "scenes:\n  - scene_id: S1\n    criterion: social_use\n    questions: []"},
		{"duplicate scene", "scenes:\n  - scene_id: S1\n    criterion: social_use\n    questions: [Q1]\n  - scene_id: S1\n    criterion: social_use\n    questions: [Q1]"},
		{"duplicate question", "scenes:\n  - scene_id: S1\n    criterion: social_use\n    questions: [Q1, Q1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(Config{Path: writeCatalog(t, tt.content)}); err == nil {
				t.Error("expected load error")
			}
		})
	}
}

func TestScenesSorted(t *testing.T) {
	c, err := Load(Config{Path: writeCatalog(t, validCatalog)})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	scenes := c.Scenes()
	if len(scenes) != 2 || scenes[0].ID != "S1" || scenes[1].ID != "S2" {
		t.Errorf("Scenes() = %+v, want [S1 S2]", scenes)
	}
}
