package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/logpulse/logpulse/pkg/model"
)

// severityAliases canonicalizes the many spellings shippers use (§4.A).
var severityAliases = map[string]model.Severity{
	"err":           model.SeverityError,
	"warn":          model.SeverityWarning,
	"crit":          model.SeverityCritical,
	"emerg":         model.SeverityEmergency,
	"fatal":         model.SeverityCritical,
	"panic":         model.SeverityEmergency,
	"trace":         model.SeverityDebug,
	"verbose":       model.SeverityDebug,
	"informational": model.SeverityInfo,
	"information":   model.SeverityInfo,
}

// canonicalSeverity lowercases and applies the alias table. A string that is
// neither an alias nor one of the eight canonical levels maps to
// SeverityUnknown, so header resolution moves on to its next source.
func canonicalSeverity(raw string) model.Severity {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.SeverityUnknown
	}
	if alias, ok := severityAliases[s]; ok {
		return alias
	}
	switch model.Severity(s) {
	case model.SeverityDebug, model.SeverityInfo, model.SeverityNotice,
		model.SeverityWarning, model.SeverityError, model.SeverityCritical,
		model.SeverityAlert, model.SeverityEmergency:
		return model.Severity(s)
	}
	return model.SeverityUnknown
}

// syslogSeverityByNumber maps RFC 5424 numeric severity 0-7 to the canonical level.
var syslogSeverityByNumber = []model.Severity{
	model.SeverityEmergency, // 0
	model.SeverityAlert,     // 1
	model.SeverityCritical,  // 2
	model.SeverityError,     // 3
	model.SeverityWarning,   // 4
	model.SeverityNotice,    // 5
	model.SeverityInfo,      // 6
	model.SeverityDebug,     // 7
}

func severityFromSyslogNumber(n int) model.Severity {
	if n < 0 || n > 7 {
		return model.SeverityUnknown
	}
	return syslogSeverityByNumber[n]
}

// severityFromOTelNumber maps OTel severity_number 1-24 by range (§4.A).
func severityFromOTelNumber(n int) model.Severity {
	switch {
	case n >= 1 && n <= 8:
		return model.SeverityDebug
	case n >= 9 && n <= 12:
		return model.SeverityInfo
	case n >= 13 && n <= 16:
		return model.SeverityWarning
	case n >= 17 && n <= 20:
		return model.SeverityError
	case n >= 21 && n <= 24:
		return model.SeverityCritical
	}
	return model.SeverityUnknown
}

// priToSeverityFacility decodes an RFC 5424 PRI value into (severity, facility).
func priToSeverityFacility(pri int) (model.Severity, int) {
	facility := pri / 8
	severity := pri % 8
	return severityFromSyslogNumber(severity), facility
}

// resolveHeaderSeverity implements the strict-order header resolution of §4.A
// steps (1)-(4). jsonBodySeverity is the result of extracting level/severity
// from a JSON-encoded message body (Pino/Bunyan/Winston shape), already
// canonicalized, or "" if none was found.
func resolveHeaderSeverity(raw map[string]interface{}, jsonBodySeverity model.Severity) (sev model.Severity, facility *int) {
	// (1) non-empty string fields.
	for _, key := range []string{"severity", "level", "syslog_severity", "severity_text"} {
		if v, ok := stringField(raw, key); ok {
			if c := canonicalSeverity(v); c != model.SeverityUnknown {
				return c, nil
			}
		}
	}

	// (2) numeric severity/level as syslog 0-7.
	for _, key := range []string{"severity", "level"} {
		if n, ok := intField(raw, key); ok {
			if c := severityFromSyslogNumber(n); c != model.SeverityUnknown {
				return c, nil
			}
		}
	}

	// (3) severity_number as OTel 1-24.
	if n, ok := intField(raw, "severity_number"); ok {
		if c := severityFromOTelNumber(n); c != model.SeverityUnknown {
			return c, nil
		}
	}

	// (4) pri field, RFC 5424 PRI.
	if n, ok := intField(raw, "pri"); ok {
		c, fac := priToSeverityFacility(n)
		if c != model.SeverityUnknown {
			if _, hasFacility := raw["facility"]; !hasFacility {
				return c, &fac
			}
			return c, nil
		}
	}

	// (5) JSON-body extracted level.
	if jsonBodySeverity != model.SeverityUnknown {
		return jsonBodySeverity, nil
	}

	return model.SeverityUnknown, nil
}

// contentSeverityRule is one ordered entry in the content-enrichment table (§4.A).
type contentSeverityRule struct {
	severity model.Severity
	patterns []*regexp.Regexp
}

// contentSeverityRules is ordered most-severe first so the first matching
// rule is used (the loop below still always picks the single most severe
// match across all rules, but evaluating in this order keeps early-exit cheap).
var contentSeverityRules = buildContentSeverityRules()

func buildContentSeverityRules() []contentSeverityRule {
	mk := func(sev model.Severity, pats ...string) contentSeverityRule {
		compiled := make([]*regexp.Regexp, 0, len(pats))
		for _, p := range pats {
			compiled = append(compiled, regexp.MustCompile("(?i)"+p))
		}
		return contentSeverityRule{severity: sev, patterns: compiled}
	}
	return []contentSeverityRule{
		mk(model.SeverityEmergency, `\blevel\s*[=:]\s*"?emerg(ency)?`, `\bkernel\s+panic\b`),
		mk(model.SeverityAlert, `\blevel\s*[=:]\s*"?alert`),
		mk(model.SeverityCritical, `\blevel\s*[=:]\s*"?crit(ical)?`, `\bsegmentation fault\b`, `\bwill not be restarted\b`, `\bfatal\b`),
		mk(model.SeverityError, `\blevel\s*[=:]\s*"?error`, `\bexception\b`, `\btraceback\b`),
		mk(model.SeverityWarning, `\blevel\s*[=:]\s*"?warn(ing)?`, `\bdeprecated\b`),
		mk(model.SeverityNotice, `\blevel\s*[=:]\s*"?notice`),
		mk(model.SeverityInfo, `\blevel\s*[=:]\s*"?info`),
		mk(model.SeverityDebug, `\blevel\s*[=:]\s*"?debug`),
	}
}

// enrichSeverityFromContent applies the ordered content rule table and
// returns the more severe of header and content (never downgrades). If
// header had no severity at all, content severity sets it outright (§4.A).
func enrichSeverityFromContent(header model.Severity, message string) model.Severity {
	best := model.SeverityUnknown
	for _, rule := range contentSeverityRules {
		for _, pat := range rule.patterns {
			if pat.MatchString(message) {
				if rule.severity.Rank() > best.Rank() {
					best = rule.severity
				}
				break
			}
		}
	}
	if best == model.SeverityUnknown {
		return header
	}
	if header == model.SeverityUnknown {
		return best
	}
	if best.MoreSevereThan(header) {
		return best
	}
	return header
}

func stringField(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func intField(raw map[string]interface{}, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
