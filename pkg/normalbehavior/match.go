package normalbehavior

import (
	"regexp"

	"github.com/logpulse/logpulse/pkg/model"
)

// CompiledTemplate holds a NormalBehaviorTemplate's compiled regexes,
// built once per construction (§4.E).
type CompiledTemplate struct {
	Template model.NormalBehaviorTemplate
	Message  *regexp.Regexp
	Host     *regexp.Regexp
	Program  *regexp.Regexp
}

// Compile builds a CompiledTemplate from a stored template. Invalid
// patterns are skipped at the registry level, not here.
func Compile(t model.NormalBehaviorTemplate) (*CompiledTemplate, error) {
	msg, err := regexp.Compile("(?i)" + t.Pattern)
	if err != nil {
		return nil, err
	}
	ct := &CompiledTemplate{Template: t, Message: msg}
	if t.HostPattern != "" {
		if h, err := regexp.Compile("(?i)" + t.HostPattern); err == nil {
			ct.Host = h
		}
	}
	if t.ProgramPattern != "" {
		if p, err := regexp.Compile("(?i)" + t.ProgramPattern); err == nil {
			ct.Program = p
		}
	}
	return ct, nil
}

// Matches reports whether an event matches this template's scope and
// regexes (§4.E): global-or-same-system, message match, and optional
// host/program matches.
func (ct *CompiledTemplate) Matches(ev *model.Event, eventSystemID string) bool {
	if !ct.Template.Enabled {
		return false
	}
	if ct.Template.SystemID != "" && ct.Template.SystemID != eventSystemID {
		return false
	}
	if !ct.Message.MatchString(ev.Message) {
		return false
	}
	if ct.Host != nil && !ct.Host.MatchString(ev.Host) {
		return false
	}
	if ct.Program != nil && !ct.Program.MatchString(ev.Program) {
		return false
	}
	return true
}

// Registry holds compiled templates for fast repeated matching against a
// batch of events, rebuilt whenever normal_behavior_templates changes.
type Registry struct {
	compiled []*CompiledTemplate
}

// NewRegistry compiles every enabled template, skipping ones whose regex
// fails to compile.
func NewRegistry(templates []model.NormalBehaviorTemplate) *Registry {
	r := &Registry{}
	for _, t := range templates {
		if !t.Enabled {
			continue
		}
		if ct, err := Compile(t); err == nil {
			r.compiled = append(r.compiled, ct)
		}
	}
	return r
}

// MatchesAny reports whether any template in the registry matches the
// event, scoped to eventSystemID.
func (r *Registry) MatchesAny(ev *model.Event, eventSystemID string) bool {
	for _, ct := range r.compiled {
		if ct.Matches(ev, eventSystemID) {
			return true
		}
	}
	return false
}

// Filter returns the subset of events not matched by any template,
// used by the scoring job and meta-analyzer to exclude routine lines.
func (r *Registry) Filter(events []*model.Event, eventSystemID string) []*model.Event {
	out := make([]*model.Event, 0, len(events))
	for _, ev := range events {
		if !r.MatchesAny(ev, eventSystemID) {
			out = append(out, ev)
		}
	}
	return out
}
