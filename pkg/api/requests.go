package api

// Pagination is the common limit/offset + sort contract for list endpoints
// (§6: "deterministic secondary sort (timestamp DESC, id ASC) for
// pagination").
type Pagination struct {
	Limit  int
	Offset int
	Sort   string
}

// EventSearchQuery is the parsed GET /api/v1/events/search request (§6).
type EventSearchQuery struct {
	SystemID   string
	Q          string
	QMode      string // "contains" (substring) or full-text
	Severities []string
	Hosts      []string
	Programs   []string
	Sources    []string
	From       string
	To         string
	Pagination Pagination
}

// AckEventsRequest is the body of POST /api/v1/events/acknowledge and
// /unacknowledge: a time range plus optional system scope, applied in
// batches of 5000 rows (§6).
type AckEventsRequest struct {
	SystemID string `json:"system_id,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// TemplateRequest is the create/update/preview body for normal-behavior
// templates (§4.E).
type TemplateRequest struct {
	SystemID       string `json:"system_id"`
	Pattern        string `json:"pattern"`
	HostPattern    string `json:"host_pattern,omitempty"`
	ProgramPattern string `json:"program_pattern,omitempty"`
	ExampleMessage string `json:"example_message,omitempty"`
	Enabled        bool   `json:"enabled"`
	Notes          string `json:"notes,omitempty"`
}
