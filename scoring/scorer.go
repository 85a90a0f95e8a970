package scoring

import (
	"math"

	"github.com/cometik/assessd/errors"
)

// Scorer applies the configured rubric version to transcripts. It holds no
// per-call state and is safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer builds a Scorer. Config defaults are applied.
func NewScorer(cfg Config) *Scorer {
	cfg.ApplyDefaults()
	return &Scorer{cfg: cfg}
}

// RubricVersion returns the rubric version this scorer records on results.
func (s *Scorer) RubricVersion() string {
	return s.cfg.RubricVersion
}

// Score evaluates a transcript against the scene's criterion. Pure given
// (transcript, criterion, rubric version). Transcripts below the minimum
// token count fail with INSUFFICIENT_TRANSCRIPT rather than scoring zero,
// because "could not evaluate" and "scored zero" are clinically different.
func (s *Scorer) Score(transcript string, criterion Criterion, sceneCtx SceneContext) (*ScoreSet, error) {
	if !criterion.Valid() {
		return nil, errors.Validation("unknown criterion: " + string(criterion))
	}
	r, err := rubricFor(s.cfg.RubricVersion)
	if err != nil {
		return nil, errors.Internal(err)
	}

	f := extractFeatures(transcript)
	if f.wordCount < s.cfg.MinTokens {
		return nil, errors.InsufficientTranscript(f.wordCount, s.cfg.MinTokens)
	}

	band := r.band(f.wordCount)
	criteriaBase, discourseBase := r.baseScores(band)

	dims := r.evaluateDimensions(criterion, f, criteriaBase[criterionIndex(criterion)])

	scores := map[Criterion]int{
		CriterionSocialUse:           criteriaBase[0],
		CriterionContextAdjustment:   criteriaBase[1],
		CriterionConversationalNorms: criteriaBase[2],
		CriterionNonLiteral:          criteriaBase[3],
	}
	// The scene's own criterion is scored from its rule dimensions; the
	// other three keep the band baseline.
	scores[criterion] = clampScore(meanScore(dims))

	coherence := discourseBase[0]
	cohesion := discourseBase[1]
	if cohesion < 2 && distinct(f.connectives) >= 2 {
		cohesion++
	}

	set := &ScoreSet{
		Criterion:           criterion,
		RubricVersion:       r.version,
		WordCount:           f.wordCount,
		Dimensions:          dims,
		CriterionScores:     scores,
		Coherence:           coherence,
		Cohesion:            cohesion,
		Disfluencies:        len(f.fillers),
		SyntacticComplexity: clampScore(distinct(f.subordinators)),
		Comment:             r.comment(band),
	}

	var sum int
	for _, c := range Criteria {
		sum += scores[c]
	}
	set.DSM5Composite = round2(float64(sum) / 4.0)
	set.ExtendedComposite = round2(float64(sum+coherence+cohesion) / 6.0)

	return set, nil
}

func criterionIndex(c Criterion) int {
	for i, known := range Criteria {
		if known == c {
			return i
		}
	}
	return 0
}

func meanScore(dims []DimensionScore) int {
	if len(dims) == 0 {
		return 0
	}
	var sum int
	for _, d := range dims {
		sum += d.Score
	}
	return int(math.Round(float64(sum) / float64(len(dims))))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
