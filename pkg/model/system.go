package model

import "time"

// EventSourceKind selects where a MonitoredSystem's events live.
type EventSourceKind string

const (
	// EventSourceRelational means events live in this service's own
	// partitioned `events` table.
	EventSourceRelational EventSourceKind = "relational"
	// EventSourceExternalSearch means events live in an external search
	// engine; only metadata is mirrored locally (§4.K).
	EventSourceExternalSearch EventSourceKind = "external_search"
)

// MonitoredSystem is a logical tenant: one system being watched (§3).
type MonitoredSystem struct {
	ID              string
	Name            string
	Description     string
	RetentionDays   *int // nil => falls back to default_retention_days
	EventSourceKind EventSourceKind
	TimezoneName    string // IANA name, e.g. "America/New_York"; empty if unset
	TZOffsetMinutes *int   // fixed UTC offset, used when TimezoneName is empty
	CreatedAt       time.Time
}

// LogSource is one stream feeding a MonitoredSystem (§3).
type LogSource struct {
	ID            string
	SystemID      string
	Label         string
	HostHint      string
	ProgramHint   string
	SourceIPHint  string
	ConnectorHint string
}
