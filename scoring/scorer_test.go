package scoring

import (
	"reflect"
	"testing"

	"github.com/cometik/assessd/errors"
)

const fluentTranscript = "Hola señora, gracias por preguntar. Primero fuimos a la escuela y después " +
	"jugamos en casa porque estaba lloviendo, entonces mi mamá dijo que podíamos ver una película."

func newTestScorer() *Scorer {
	return NewScorer(Config{})
}

func TestScoreIsPure(t *testing.T) {
	s := newTestScorer()
	ctx := SceneContext{SceneID: "S1", QuestionID: "Q1", Locale: "es-ES"}

	first, err := s.Score(fluentTranscript, CriterionSocialUse, ctx)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	second, err := s.Score(fluentTranscript, CriterionSocialUse, ctx)
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Score() not pure:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestScoreEmptyTranscript(t *testing.T) {
	s := newTestScorer()
	_, err := s.Score("", CriterionSocialUse, SceneContext{})
	if !errors.HasCode(err, errors.ErrCodeInsufficientTranscript) {
		t.Errorf("error code = %v, want INSUFFICIENT_TRANSCRIPT", errors.CodeOf(err))
	}
}

func TestScoreBelowMinTokens(t *testing.T) {
	s := NewScorer(Config{MinTokens: 3})
	_, err := s.Score("sí claro", CriterionConversationalNorms, SceneContext{})
	if !errors.HasCode(err, errors.ErrCodeInsufficientTranscript) {
		t.Errorf("error code = %v, want INSUFFICIENT_TRANSCRIPT", errors.CodeOf(err))
	}
}

func TestScoreUnknownCriterion(t *testing.T) {
	s := newTestScorer()
	_, err := s.Score(fluentTranscript, Criterion("empathy"), SceneContext{})
	if err == nil {
		t.Fatal("expected error for unknown criterion")
	}
}

func TestScoreWordCountBands(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		name           string
		transcript     string
		wantConvNorms  int
		wantCoherence  int
	}{
		{"short", "no sé qué", 1, 0},
		{"medium", "fuimos al parque con mi hermano y jugamos mucho rato allí", 1, 1},
		{"fluent", fluentTranscript, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := s.Score(tt.transcript, CriterionSocialUse, SceneContext{})
			if err != nil {
				t.Fatalf("Score() error: %v", err)
			}
			if got := set.CriterionScores[CriterionConversationalNorms]; got != tt.wantConvNorms {
				t.Errorf("conversational norms = %d, want %d", got, tt.wantConvNorms)
			}
			if set.Coherence != tt.wantCoherence {
				t.Errorf("coherence = %d, want %d", set.Coherence, tt.wantCoherence)
			}
		})
	}
}

func TestScoreComposites(t *testing.T) {
	s := newTestScorer()
	set, err := s.Score(fluentTranscript, CriterionConversationalNorms, SceneContext{})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}

	var sum int
	for _, c := range Criteria {
		sum += set.CriterionScores[c]
	}
	want := round2(float64(sum) / 4.0)
	if set.DSM5Composite != want {
		t.Errorf("DSM5Composite = %v, want %v", set.DSM5Composite, want)
	}

	wantExt := round2(float64(sum+set.Coherence+set.Cohesion) / 6.0)
	if set.ExtendedComposite != wantExt {
		t.Errorf("ExtendedComposite = %v, want %v", set.ExtendedComposite, wantExt)
	}
}

func TestScoreDimensionsCarryEvidence(t *testing.T) {
	s := newTestScorer()
	set, err := s.Score(fluentTranscript, CriterionSocialUse, SceneContext{})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if len(set.Dimensions) == 0 {
		t.Fatal("expected scored dimensions for the primary criterion")
	}
	for _, d := range set.Dimensions {
		if d.Score < 0 || d.Score > 2 {
			t.Errorf("dimension %s score %d out of [0,2]", d.Dimension, d.Score)
		}
		if d.Evidence == "" {
			t.Errorf("dimension %s has no evidence span", d.Dimension)
		}
	}
	// "hola" and "gracias" appear, so the greeting dimension must cite one.
	if got := set.Dimensions[0].Evidence; got != "matched: hola" {
		t.Errorf("greeting evidence = %q, want %q", got, "matched: hola")
	}
}

func TestScoreFluencyIndicators(t *testing.T) {
	s := newTestScorer()
	transcript := "eh pues fuimos al parque este y mmm jugamos porque hacía sol cuando salimos de clase"
	set, err := s.Score(transcript, CriterionContextAdjustment, SceneContext{})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if set.Disfluencies < 3 {
		t.Errorf("disfluencies = %d, want >= 3 (eh, pues, este, mmm)", set.Disfluencies)
	}
	if set.SyntacticComplexity != 2 {
		t.Errorf("syntactic complexity = %d, want 2 (porque, cuando)", set.SyntacticComplexity)
	}
}

func TestScoreRecordsRubricVersion(t *testing.T) {
	s := newTestScorer()
	set, err := s.Score(fluentTranscript, CriterionNonLiteral, SceneContext{})
	if err != nil {
		t.Fatalf("Score() error: %v", err)
	}
	if set.RubricVersion != DefaultRubricVersion {
		t.Errorf("rubric version = %q, want %q", set.RubricVersion, DefaultRubricVersion)
	}
	if set.WordCount == 0 {
		t.Error("word count not recorded")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{RubricVersion: "9999.9", MinTokens: 1}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown rubric version")
	}

	cfg = Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
