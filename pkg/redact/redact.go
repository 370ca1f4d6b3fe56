// Package redact implements the storage-time redactor (§4.B): an ordered
// list of regex substitutions applied to event messages and, recursively,
// to JSON payload string values, plus a separate in-memory privacy filter
// (privacy.go). No LLM call path applies that filter; prompts carry the
// storage-time-redacted text.
package redact

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Pattern is one compiled regex substitution. Quoted-value rules must sort
// before their unquoted counterparts so a greedy `\S+` never swallows the
// closing quote (§4.B).
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

const placeholder = "[REDACTED]"

// sensitiveKeys is matched case-insensitively against JSON payload keys;
// matching keys are replaced outright rather than pattern-substituted (§4.B).
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"access_key":    true,
	"private_key":   true,
	"client_secret": true,
	"refresh_token": true,
	"credentials":   true,
}

// Redactor holds the compiled builtin + custom pattern set. Compiled once
// per process; Invalidate() rebuilds it when configuration changes (§4.B).
type Redactor struct {
	mu       sync.RWMutex
	patterns []*Pattern
}

// New builds a Redactor from the builtin rules plus any operator-supplied
// custom regex patterns (case-insensitive, global).
func New(customPatterns []string) *Redactor {
	r := &Redactor{}
	r.compile(customPatterns)
	return r
}

// Invalidate recompiles the pattern set, e.g. after an operator edits
// custom patterns in app_config (§4.B).
func (r *Redactor) Invalidate(customPatterns []string) {
	r.compile(customPatterns)
}

func (r *Redactor) compile(customPatterns []string) {
	patterns := append([]*Pattern{}, builtinPatterns()...)
	for i, p := range customPatterns {
		compiled, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		patterns = append(patterns, &Pattern{
			Name:        fmt.Sprintf("custom:%d", i),
			Regex:       compiled,
			Replacement: placeholder,
		})
	}

	r.mu.Lock()
	r.patterns = patterns
	r.mu.Unlock()
}

// RedactMessage applies every compiled pattern to a single message string.
func (r *Redactor) RedactMessage(message string) string {
	r.mu.RLock()
	patterns := r.patterns
	r.mu.RUnlock()

	for _, p := range patterns {
		message = p.Regex.ReplaceAllString(message, p.Replacement)
	}
	return message
}

// RedactPayload walks a JSON-decoded payload recursively: keys matching
// sensitiveKeys (case-insensitive) are replaced outright; other string
// values are pattern-substituted the same way RedactMessage does (§4.B).
func (r *Redactor) RedactPayload(payload map[string]interface{}) map[string]interface{} {
	return r.redactValue(payload).(map[string]interface{})
}

func (r *Redactor) redactValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				out[k] = placeholder
				continue
			}
			out[k] = r.redactValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = r.redactValue(val)
		}
		return out
	case string:
		return r.RedactMessage(t)
	default:
		return v
	}
}
