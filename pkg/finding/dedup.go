package finding

import (
	"github.com/logpulse/logpulse/pkg/model"
)

// Candidate is one new finding proposed by the meta-analyzer, before
// dedup matching against existing open/acknowledged findings (§4.H step 13).
type Candidate struct {
	Text      string
	Severity  model.FindingSeverity
	Criterion string // "" = null/any
}

// MatchResult is the outcome of matching one candidate against the
// existing finding set.
type MatchResult struct {
	Matched  bool
	Existing model.Finding
	Method   string // "fingerprint" | "tfidf" | "jaccard"
}

// Matcher resolves new-finding candidates against an existing open/
// acknowledged finding set, in the fixed priority order of §4.H step 13:
// fingerprint exact match, then TF-IDF cosine (corpus >= 3), then Jaccard.
type Matcher struct {
	existing  []model.Finding
	tokens    map[string][]string // finding ID -> normalized tokens
	tfidf     *TFIDFModel
	threshold float64
}

// NewMatcher builds a Matcher over the current open/acknowledged findings.
// threshold <= 0 uses DedupThreshold.
func NewMatcher(existing []model.Finding, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DedupThreshold
	}
	tokens := make(map[string][]string, len(existing))
	corpus := make([][]string, 0, len(existing))
	for _, f := range existing {
		toks := NormalizeText(f.Text)
		tokens[f.ID] = toks
		corpus = append(corpus, toks)
	}

	m := &Matcher{existing: existing, tokens: tokens, threshold: threshold}
	if len(corpus) >= 3 {
		m.tfidf = NewTFIDFModel(corpus)
	}
	return m
}

// Match finds the best existing finding for candidate, or reports no match.
func (m *Matcher) Match(c Candidate) MatchResult {
	candidateFingerprint := Fingerprint(c.Text)
	for _, f := range m.existing {
		if !CriterionCompatible(c.Criterion, f.CriterionSlug) {
			continue
		}
		if f.Fingerprint == candidateFingerprint {
			return MatchResult{Matched: true, Existing: f, Method: "fingerprint"}
		}
	}

	candidateTokens := NormalizeText(c.Text)

	if m.tfidf != nil {
		var best model.Finding
		bestScore := 0.0
		found := false
		for _, f := range m.existing {
			if !CriterionCompatible(c.Criterion, f.CriterionSlug) {
				continue
			}
			score := m.tfidf.Cosine(candidateTokens, m.tokens[f.ID])
			if score > bestScore {
				bestScore = score
				best = f
				found = true
			}
		}
		if found && bestScore >= m.threshold {
			return MatchResult{Matched: true, Existing: best, Method: "tfidf"}
		}
	}

	var best model.Finding
	bestScore := 0.0
	found := false
	for _, f := range m.existing {
		if !CriterionCompatible(c.Criterion, f.CriterionSlug) {
			continue
		}
		score := JaccardSimilarity(candidateTokens, m.tokens[f.ID])
		if score > bestScore {
			bestScore = score
			best = f
			found = true
		}
	}
	if found && bestScore >= m.threshold {
		return MatchResult{Matched: true, Existing: best, Method: "jaccard"}
	}

	return MatchResult{}
}

// CollapseIntraBatch collapses duplicates within a single new-finding batch
// using Jaccard on identical-criterion pairs, keeping the higher-severity
// text for each surviving cluster (§4.H step 13, "intra-batch dedup first").
func CollapseIntraBatch(candidates []Candidate, threshold float64) []Candidate {
	if threshold <= 0 {
		threshold = DedupThreshold
	}
	tokens := make([][]string, len(candidates))
	for i, c := range candidates {
		tokens[i] = NormalizeText(c.Text)
	}

	kept := make([]bool, len(candidates))
	for i := range candidates {
		kept[i] = true
	}

	for i := 0; i < len(candidates); i++ {
		if !kept[i] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if !kept[j] {
				continue
			}
			if candidates[i].Criterion != candidates[j].Criterion {
				continue
			}
			if JaccardSimilarity(tokens[i], tokens[j]) >= threshold {
				if candidates[j].Severity.Rank() > candidates[i].Severity.Rank() {
					candidates[i].Text = candidates[j].Text
					candidates[i].Severity = candidates[j].Severity
				}
				kept[j] = false
			}
		}
	}

	out := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if kept[i] {
			out = append(out, c)
		}
	}
	return out
}
