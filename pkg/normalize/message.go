package normalize

import (
	"encoding/json"
	"strings"

	"github.com/logpulse/logpulse/pkg/model"
)

const truncationMarker = "[...truncated]"

// resolveMessage returns the first non-empty of message/short_message/msg/body (§4.A).
func resolveMessage(raw map[string]interface{}) (string, bool) {
	for _, key := range []string{"message", "short_message", "msg", "body"} {
		if v, ok := stringField(raw, key); ok {
			return v, true
		}
	}
	return "", false
}

// jsonBodyFields holds the level/message pair extracted from a JSON-encoded
// message body (§4.A) — handles structured loggers (Pino/Bunyan/Winston)
// that put their own JSON object as the "message" value.
type jsonBodyFields struct {
	severity model.Severity
	message  string
	found    bool
}

// extractJSONBody tries to parse message as a JSON object carrying its own
// level/msg fields. Returns found=false if message isn't such a JSON body.
func extractJSONBody(message string) jsonBodyFields {
	trimmed := strings.TrimSpace(message)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return jsonBodyFields{}
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return jsonBodyFields{}
	}

	var sev model.Severity
	for _, key := range []string{"level", "severity", "loglevel", "lvl"} {
		if v, ok := stringField(obj, key); ok {
			sev = canonicalSeverity(v)
			break
		}
		if n, ok := intField(obj, key); ok {
			if c := severityFromSyslogNumber(n); c != model.SeverityUnknown {
				sev = c
				break
			}
		}
	}

	var msg string
	var found bool
	for _, key := range []string{"msg", "message", "text"} {
		if v, ok := stringField(obj, key); ok {
			msg = v
			found = true
			break
		}
	}
	if !found {
		return jsonBodyFields{}
	}
	return jsonBodyFields{severity: sev, message: msg, found: true}
}

// truncateMessage caps message length, appending a marker when truncated (§4.A).
func truncateMessage(message string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 8192
	}
	if len(message) <= maxLength {
		return message
	}
	cut := maxLength - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	return message[:cut] + truncationMarker
}
