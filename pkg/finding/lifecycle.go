package finding

import (
	"sort"

	"github.com/logpulse/logpulse/pkg/model"
)

// CriterionCompatible implements §4.I's rule: a null criterion slug
// matches anything; otherwise the slugs must be equal strings.
func CriterionCompatible(candidate, existing string) bool {
	if candidate == "" || existing == "" {
		return true
	}
	return candidate == existing
}

// DedupThreshold is the default TF-IDF/Jaccard similarity threshold used
// when a system hasn't overridden meta_analysis_config.dedup_threshold.
const DedupThreshold = 0.6

// SortForEviction orders findings ascending by severity rank then ascending
// by last-seen time, so the lowest-priority, staleest findings are first:
// exactly the order §4.H step 22 evicts in.
func SortForEviction(findings []model.Finding) []model.Finding {
	out := append([]model.Finding{}, findings...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Severity.Rank(), out[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].LastSeenAt.Before(out[j].LastSeenAt)
	})
	return out
}

// EvictionCandidates returns the findings to auto-close given a cap on
// open findings: the lowest-priority excess over maxOpen (§4.H step 22).
func EvictionCandidates(openFindings []model.Finding, maxOpen int) []model.Finding {
	if len(openFindings) <= maxOpen {
		return nil
	}
	sorted := SortForEviction(openFindings)
	excess := len(sorted) - maxOpen
	return sorted[:excess]
}
