// Package model holds the domain types shared across the ingestion, scoring,
// windowing, meta-analysis, and finding-lifecycle pipeline.
package model

import (
	"encoding/json"
	"time"
)

// Severity is the canonical RFC 5424 severity level, always lowercase.
type Severity string

// Canonical severity levels, ordered least to most severe.
const (
	SeverityDebug         Severity = "debug"
	SeverityInfo          Severity = "info"
	SeverityNotice        Severity = "notice"
	SeverityWarning       Severity = "warning"
	SeverityError         Severity = "error"
	SeverityCritical      Severity = "critical"
	SeverityAlert         Severity = "alert"
	SeverityEmergency     Severity = "emergency"
	SeverityUnknown       Severity = ""
)

// severityRank gives each severity a numeric rank for "more severe than" comparisons.
// Used by content-based enrichment (§4.A), which never downgrades a header severity.
var severityRank = map[Severity]int{
	SeverityDebug:     0,
	SeverityInfo:      1,
	SeverityNotice:    2,
	SeverityWarning:   3,
	SeverityError:     4,
	SeverityCritical:  5,
	SeverityAlert:     6,
	SeverityEmergency: 7,
}

// Rank returns the numeric severity rank, or -1 for an unrecognized/empty severity.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// MoreSevereThan reports whether s outranks other. An unrecognized severity
// never outranks a recognized one.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.Rank() > other.Rank()
}

// Event is one normalized log record, the unit the rest of the pipeline operates on.
//
// (NormalizedHash, Timestamp) is unique within the store (§3); this is the
// idempotent-ingest dedup key.
type Event struct {
	ID             string          `json:"id"`
	SystemID       string          `json:"system_id"`
	LogSourceID    string          `json:"log_source_id,omitempty"`
	ConnectorID    string          `json:"connector_id,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
	Timestamp      time.Time       `json:"timestamp"`
	Message        string          `json:"message"`
	Severity       Severity        `json:"severity"`
	Host           string          `json:"host,omitempty"`
	SourceIP       string          `json:"source_ip,omitempty"`
	Service        string          `json:"service,omitempty"`
	Facility       *int            `json:"facility,omitempty"`
	Program        string          `json:"program,omitempty"`
	TraceID        string          `json:"trace_id,omitempty"`
	SpanID         string          `json:"span_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	NormalizedHash string          `json:"normalized_hash"`
	ExternalID     string          `json:"external_id,omitempty"`
	TemplateID     string          `json:"template_id,omitempty"`
	AcknowledgedAt *time.Time      `json:"acknowledged_at,omitempty"`

	// FutureClamped records whether the future-timestamp guard fired (§4.A).
	FutureClamped bool `json:"-"`
}

// EventScore is one (event, criterion) score row.
type EventScore struct {
	EventID     string    `json:"event_id"`
	CriterionID int       `json:"criterion_id"`
	ScoreType   string    `json:"score_type"`
	Score       float64   `json:"score"`
}

// ScoreTypeEvent is the only score_type used by per-event scoring today (§3).
const ScoreTypeEvent = "event"
