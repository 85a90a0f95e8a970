package scoring

import "fmt"

// DefaultRubricVersion is the rule set applied when none is configured.
const DefaultRubricVersion = "2025.1"

// rubric is one versioned rule set. Band thresholds and dimension rules are
// frozen per version so historical scores stay attributable.
type rubric struct {
	version string

	// Word-count bands: below shortBand the answer carries very little
	// pragmatic evidence, below mediumBand it is brief but scoreable,
	// at or above it counts as fluent.
	shortBand  int
	mediumBand int
}

var rubrics = map[string]*rubric{
	DefaultRubricVersion: {
		version:    DefaultRubricVersion,
		shortBand:  5,
		mediumBand: 15,
	},
}

func rubricFor(version string) (*rubric, error) {
	r, ok := rubrics[version]
	if !ok {
		return nil, fmt.Errorf("unknown rubric version %q", version)
	}
	return r, nil
}

// band classifies the transcript length. 0 = short, 1 = medium, 2 = fluent.
func (r *rubric) band(wordCount int) int {
	switch {
	case wordCount < r.shortBand:
		return 0
	case wordCount < r.mediumBand:
		return 1
	default:
		return 2
	}
}

// baseScores returns the per-band baselines for the four criteria and the
// two discourse dimensions, in order A1..A4 then coherence, cohesion.
func (r *rubric) baseScores(band int) (criteria [4]int, discourse [2]int) {
	switch band {
	case 0:
		return [4]int{0, 0, 1, 0}, [2]int{0, 1}
	case 1:
		return [4]int{1, 1, 1, 0}, [2]int{1, 1}
	default:
		return [4]int{2, 2, 2, 1}, [2]int{2, 2}
	}
}

// comment returns the reviewer-facing summary for the band.
func (r *rubric) comment(band int) string {
	switch band {
	case 0:
		return "Very short answer; little evidence of pragmatic competence."
	case 1:
		return "Coherent but brief answer; moderate pragmatic competence."
	default:
		return "Fluent answer with good articulation; strong pragmatic competence."
	}
}

// evaluateDimensions applies the criterion's rules to the extracted features
// and returns the scored dimensions with evidence spans.
func (r *rubric) evaluateDimensions(c Criterion, f features, base int) []DimensionScore {
	switch c {
	case CriterionSocialUse:
		return []DimensionScore{
			markerDimension("greeting_and_politeness", f.socialMarkers, base),
			markerDimension("addressee_orientation", f.turnMarkers, base),
		}
	case CriterionContextAdjustment:
		return []DimensionScore{
			markerDimension("situational_reference", f.contextMarkers, base),
			countDimension("elaboration", f.wordCount, r.mediumBand, base),
		}
	case CriterionConversationalNorms:
		return []DimensionScore{
			markerDimension("turn_taking_markers", f.turnMarkers, base),
			markerDimension("discourse_connectives", f.connectives, base),
		}
	case CriterionNonLiteral:
		return []DimensionScore{
			markerDimension("inference_language", f.nonLiteralCues, base),
			markerDimension("comparison_and_idiom_cues", f.nonLiteralCues, base),
		}
	}
	return nil
}

// markerDimension scores from the band baseline, raised when the transcript
// actually shows the targeted markers. Evidence names the matched token.
func markerDimension(name string, hits []string, base int) DimensionScore {
	score := base
	evidence := "no matching markers"
	if len(hits) > 0 {
		evidence = "matched: " + hits[0]
		if score < 2 && distinct(hits) >= 2 {
			score++
		}
	} else if score > 0 {
		score--
	}
	return DimensionScore{Dimension: name, Score: clampScore(score), Evidence: evidence}
}

// countDimension scores elaboration from transcript length alone.
func countDimension(name string, wordCount, fluentAt, base int) DimensionScore {
	score := base
	if wordCount >= fluentAt {
		score = 2
	}
	return DimensionScore{
		Dimension: name,
		Score:     clampScore(score),
		Evidence:  fmt.Sprintf("word count %d", wordCount),
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 2 {
		return 2
	}
	return s
}
