package finding

import "strings"

// contradictionPhrases are lowercase substrings in resolution evidence that
// indicate the issue is NOT actually resolved (§4.H step 18).
var contradictionPhrases = []string{
	"persists", "unresolved", "still active", "continues to",
	"remains unresolved", "failed", "failure", "connection refused",
	"confirms ongoing",
}

// nonResolvingSeverities are event severities that can never serve as
// proof of resolution (§4.H step 18).
var nonResolvingSeverities = map[string]bool{
	"error": true, "err": true, "critical": true, "crit": true,
	"alert": true, "emergency": true, "emerg": true,
}

// ContradictionGuard rejects a resolution whose evidence text contains any
// fixed contradiction phrase.
func ContradictionGuard(evidenceText string) (reject bool) {
	lower := strings.ToLower(evidenceText)
	for _, phrase := range contradictionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// SelfReferenceGuard rejects a resolution when every referenced event
// message overlaps the finding text by >= 40% significant words in either
// direction — the "proof" is just restating the same problem (§4.H step 18).
func SelfReferenceGuard(findingText string, referencedMessages []string) bool {
	if len(referencedMessages) == 0 {
		return false
	}
	findingWords := significantWords(findingText)
	for _, msg := range referencedMessages {
		msgWords := significantWords(msg)
		if !crossesThreshold(findingWords, msgWords, 0.4) {
			return false
		}
	}
	return true
}

// ErrorSeverityGuard rejects a resolution when every referenced event with
// a known severity is itself an error-level severity (§4.H step 18).
func ErrorSeverityGuard(referencedSeverities []string) bool {
	known := 0
	allErrorLike := true
	for _, sev := range referencedSeverities {
		s := strings.ToLower(strings.TrimSpace(sev))
		if s == "" {
			continue
		}
		known++
		if !nonResolvingSeverities[s] {
			allErrorLike = false
		}
	}
	return known > 0 && allErrorLike
}

// significantWords tokenizes text into lowercase words longer than 3
// characters with punctuation stripped (§4.H step 11's significant-word
// overlap rule, reused here for self-reference detection).
func significantWords(text string) map[string]bool {
	tokens := NormalizeText(text)
	words := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if len(t) > 3 {
			words[t] = true
		}
	}
	return words
}

// crossesThreshold reports whether the overlap between a and b, as a
// fraction of either set's size, meets or exceeds threshold in either
// direction.
func crossesThreshold(a, b map[string]bool, threshold float64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	overlap := 0
	for w := range a {
		if b[w] {
			overlap++
		}
	}
	return float64(overlap)/float64(len(a)) >= threshold || float64(overlap)/float64(len(b)) >= threshold
}
