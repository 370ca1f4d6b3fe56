// Package sourcematch resolves a normalized event to its owning
// (system_id, log_source_id) pair (§4.C).
package sourcematch

import (
	"strings"

	"github.com/logpulse/logpulse/pkg/model"
)

// Match is the resolved ownership of an event, or the zero value when no
// LogSource hint matched (caller buffers into discovery).
type Match struct {
	SystemID    string
	LogSourceID string
	Found       bool
}

// Matcher resolves events against a set of LogSource hints. Rebuilt
// whenever log_sources changes; cheap to construct.
type Matcher struct {
	sources []model.LogSource
}

// New builds a Matcher over the given log sources.
func New(sources []model.LogSource) *Matcher {
	return &Matcher{sources: sources}
}

// Resolve returns the first LogSource whose hints match, checked in the
// fixed priority order: exact connector id, then host, then source ip,
// then program (§4.C).
func (m *Matcher) Resolve(connectorID, host, sourceIP, program string) Match {
	if connectorID != "" {
		if src, ok := m.findBy(func(s model.LogSource) bool {
			return s.ConnectorHint != "" && s.ConnectorHint == connectorID
		}); ok {
			return Match{SystemID: src.SystemID, LogSourceID: src.ID, Found: true}
		}
	}
	if host != "" {
		if src, ok := m.findBy(func(s model.LogSource) bool {
			return s.HostHint != "" && strings.EqualFold(s.HostHint, host)
		}); ok {
			return Match{SystemID: src.SystemID, LogSourceID: src.ID, Found: true}
		}
	}
	if sourceIP != "" {
		if src, ok := m.findBy(func(s model.LogSource) bool {
			return s.SourceIPHint != "" && s.SourceIPHint == sourceIP
		}); ok {
			return Match{SystemID: src.SystemID, LogSourceID: src.ID, Found: true}
		}
	}
	if program != "" {
		if src, ok := m.findBy(func(s model.LogSource) bool {
			return s.ProgramHint != "" && strings.EqualFold(s.ProgramHint, program)
		}); ok {
			return Match{SystemID: src.SystemID, LogSourceID: src.ID, Found: true}
		}
	}
	return Match{}
}

func (m *Matcher) findBy(pred func(model.LogSource) bool) (model.LogSource, bool) {
	for _, s := range m.sources {
		if pred(s) {
			return s, true
		}
	}
	return model.LogSource{}, false
}
