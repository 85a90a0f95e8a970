// Package scoring evaluates transcripts against DSM-5 pragmatic-language
// criteria using versioned, rule-based rubrics. Scoring is pure: identical
// (transcript, criterion, rubric version) always yields an identical ScoreSet,
// so historical scores stay reproducible and rubric changes are testable by
// replay.
package scoring

// Criterion is one of the four DSM-5 pragmatic criteria a scene targets.
type Criterion string

const (
	// CriterionSocialUse covers social use of communication (A1).
	CriterionSocialUse Criterion = "social_use"
	// CriterionContextAdjustment covers adjusting speech to context (A2).
	CriterionContextAdjustment Criterion = "context_adjustment"
	// CriterionConversationalNorms covers conversation and storytelling norms (A3).
	CriterionConversationalNorms Criterion = "conversational_norms"
	// CriterionNonLiteral covers understanding non-literal language (A4).
	CriterionNonLiteral Criterion = "non_literal_comprehension"
)

// Criteria lists the four criteria in DSM-5 order.
var Criteria = []Criterion{
	CriterionSocialUse,
	CriterionContextAdjustment,
	CriterionConversationalNorms,
	CriterionNonLiteral,
}

// Valid reports whether c names a known criterion.
func (c Criterion) Valid() bool {
	switch c {
	case CriterionSocialUse, CriterionContextAdjustment, CriterionConversationalNorms, CriterionNonLiteral:
		return true
	}
	return false
}

// SceneContext carries reference data about the scene being scored.
type SceneContext struct {
	SceneID    string `json:"scene_id"`
	QuestionID string `json:"question_id"`
	Locale     string `json:"locale"`
}

// DimensionScore is one evaluated linguistic dimension: a sub-score in [0,2]
// and the evidence span (matched substring or feature trigger) behind it.
type DimensionScore struct {
	Dimension string `json:"dimension"`
	Score     int    `json:"score"`
	Evidence  string `json:"evidence"`
}

// ScoreSet is the full result of scoring one transcript. CriterionScores
// holds the four DSM-5 sub-scores; Dimensions details the scene's primary
// criterion with evidence spans.
type ScoreSet struct {
	Criterion     Criterion         `json:"criterion"`
	RubricVersion string            `json:"rubric_version"`
	WordCount     int               `json:"word_count"`

	Dimensions      []DimensionScore  `json:"dimensions"`
	CriterionScores map[Criterion]int `json:"criterion_scores"`

	// Discourse dimensions.
	Coherence int `json:"coherence"`
	Cohesion  int `json:"cohesion"`

	// Fluency indicators.
	Disfluencies        int `json:"disfluencies"`
	SyntacticComplexity int `json:"syntactic_complexity"`

	// DSM5Composite is the mean of the four criterion sub-scores, rounded
	// to two decimals. ExtendedComposite also folds in the discourse
	// dimensions.
	DSM5Composite     float64 `json:"dsm5_composite"`
	ExtendedComposite float64 `json:"extended_composite"`

	// Comment is a short reviewer-facing summary.
	Comment string `json:"comment"`
}
