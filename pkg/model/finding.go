package model

import "time"

// FindingSeverity is the finding severity scale (§3), distinct from log Severity.
type FindingSeverity string

const (
	FindingSeverityInfo     FindingSeverity = "info"
	FindingSeverityLow      FindingSeverity = "low"
	FindingSeverityMedium   FindingSeverity = "medium"
	FindingSeverityHigh     FindingSeverity = "high"
	FindingSeverityCritical FindingSeverity = "critical"
)

// findingSeverityRank orders severities ascending (§4.I): info<low<medium<high<critical.
var findingSeverityRank = map[FindingSeverity]int{
	FindingSeverityInfo:     0,
	FindingSeverityLow:      1,
	FindingSeverityMedium:   2,
	FindingSeverityHigh:     3,
	FindingSeverityCritical: 4,
}

// Rank returns the ascending severity rank, defaulting unrecognized values to
// the lowest rank so they never block legitimate escalation.
func (s FindingSeverity) Rank() int {
	if r, ok := findingSeverityRank[s]; ok {
		return r
	}
	return 0
}

// Max returns the higher-ranked of two severities — used for escalate-only
// updates (§3 invariant: severity escalates, never downgrades automatically).
func (s FindingSeverity) Max(other FindingSeverity) FindingSeverity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// FindingStatus is the finding lifecycle state (§3, §4.I).
type FindingStatus string

const (
	FindingStatusOpen         FindingStatus = "open"
	FindingStatusAcknowledged FindingStatus = "acknowledged"
	FindingStatusResolved     FindingStatus = "resolved"
)

// ResolutionEvidence is the JSON payload recorded when a finding resolves (§3).
type ResolutionEvidence struct {
	Text        string   `json:"text"`
	EventIDs    []string `json:"event_ids,omitempty"`
	AutoResolved bool    `json:"auto_resolved,omitempty"`
}

// Finding is a persistent tracked issue with an explicit lifecycle (§3).
type Finding struct {
	ID                 string
	SystemID           string
	CriterionSlug       string // empty = no specific criterion (matches anything)
	Text                string
	Severity            FindingSeverity
	Status              FindingStatus
	Fingerprint         string
	OccurrenceCount     int
	ConsecutiveMisses   int
	ReopenCount         int // legacy, never incremented by new code (§3)
	CreatedAt           time.Time
	LastSeenAt          time.Time
	ResolvedAt          *time.Time
	ResolvedByMetaID    string
	ResolutionEvidence  *ResolutionEvidence
	KeyEventIDs         []string
}
