package api

import "github.com/logpulse/logpulse/pkg/model"

// IngestResponse is returned by POST /api/v1/ingest (§4.D).
type IngestResponse struct {
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// Page wraps a list response with its total count for pagination.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// SystemOverview is one row of GET /api/v1/dashboard/systems: a system
// plus its most recent effective scores per criterion.
type SystemOverview struct {
	model.MonitoredSystem
	EffectiveScores map[string]float64 `json:"effective_scores"`
}

// EventFacetsResponse is returned by GET /api/v1/events/facets: distinct
// values (with counts) for the filterable columns, scoped to the query.
type EventFacetsResponse struct {
	Severities map[string]int `json:"severities"`
	Hosts      map[string]int `json:"hosts"`
	Programs   map[string]int `json:"programs"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TemplatePreviewResponse is returned by POST
// /api/v1/normal-behavior-templates/preview: the count of already-stored
// events the candidate pattern would have matched, plus a small sample.
type TemplatePreviewResponse struct {
	MatchCount int            `json:"match_count"`
	Sample     []model.Event  `json:"sample"`
}
