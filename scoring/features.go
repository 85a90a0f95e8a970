package scoring

import "strings"

// features is the deterministic linguistic profile the rubric rules consume.
type features struct {
	tokens    []string
	wordCount int

	socialMarkers   []string // greetings, politeness, addressee forms
	contextMarkers  []string // register and situational adjustment cues
	turnMarkers     []string // turn-taking and repair markers
	nonLiteralCues  []string // idiom, comparison and inference language
	connectives     []string // discourse connectives
	fillers         []string // disfluency fillers
	subordinators   []string // subordinate clause introducers
}

// Marker lexicons for the es-* locales the assessments run in. Matching is
// on normalized tokens, so stems cover inflected forms loosely.
var (
	socialMarkerWords = wordSet(
		"hola", "adiós", "gracias", "favor", "perdón", "perdona", "disculpa",
		"buenos", "buenas", "señor", "señora", "usted", "contigo", "saludo",
	)
	contextMarkerWords = wordSet(
		"porque", "cuando", "donde", "aquí", "allí", "ahora", "luego",
		"escuela", "casa", "clase", "profesor", "profesora", "mamá", "papá",
	)
	turnMarkerWords = wordSet(
		"sí", "no", "vale", "bueno", "bien", "claro", "entonces",
		"espera", "mira", "oye", "dime", "repito", "digo",
	)
	nonLiteralCueWords = wordSet(
		"como", "parece", "creo", "pienso", "imagino", "significa",
		"quiere", "decir", "broma", "chiste", "verdad", "realidad",
	)
	connectiveWords = wordSet(
		"y", "pero", "porque", "entonces", "después", "luego", "primero",
		"también", "además", "aunque", "mientras",
	)
	fillerWords = wordSet(
		"eh", "ehh", "em", "emm", "mm", "mmm", "este", "esto", "pues",
	)
	subordinatorWords = wordSet(
		"que", "porque", "cuando", "si", "aunque", "mientras", "donde",
	)
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// extractFeatures tokenizes the transcript and collects marker hits in
// transcript order.
func extractFeatures(transcript string) features {
	raw := strings.Fields(transcript)
	f := features{wordCount: len(raw)}
	f.tokens = make([]string, 0, len(raw))
	for _, t := range raw {
		f.tokens = append(f.tokens, normalizeToken(t))
	}
	for _, tok := range f.tokens {
		if socialMarkerWords[tok] {
			f.socialMarkers = append(f.socialMarkers, tok)
		}
		if contextMarkerWords[tok] {
			f.contextMarkers = append(f.contextMarkers, tok)
		}
		if turnMarkerWords[tok] {
			f.turnMarkers = append(f.turnMarkers, tok)
		}
		if nonLiteralCueWords[tok] {
			f.nonLiteralCues = append(f.nonLiteralCues, tok)
		}
		if connectiveWords[tok] {
			f.connectives = append(f.connectives, tok)
		}
		if fillerWords[tok] {
			f.fillers = append(f.fillers, tok)
		}
		if subordinatorWords[tok] {
			f.subordinators = append(f.subordinators, tok)
		}
	}
	return f
}

func normalizeToken(t string) string {
	t = strings.ToLower(t)
	return strings.Trim(t, ".,;:!?¿¡\"'()«»")
}

// distinct returns the number of unique entries in hits.
func distinct(hits []string) int {
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		seen[h] = true
	}
	return len(seen)
}
