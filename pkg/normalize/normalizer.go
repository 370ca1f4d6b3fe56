// Package normalize parses heterogeneous ingest entries into canonical
// Events: ECS flattening, message/timestamp/severity resolution, content-based
// severity enrichment, host/source_ip cleanup, timezone correction, future-
// timestamp clamping, multiline reassembly, and normalized-hash computation (§4.A).
package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/model"
)

// ErrInvalidEntry is returned when an entry has no resolvable message (§4.A).
var ErrInvalidEntry = errors.New("invalid_entry: message is missing")

// SystemTZInfo carries the timezone facts needed for correction (§4.A),
// resolved by the caller (ingest writer) after source matching.
type SystemTZInfo struct {
	TZName          string
	TZOffsetMinutes *int
}

// Options configures a Normalizer.
type Options struct {
	MaxMessageLength     int
	MaxFutureDriftSeconds int
	CollectorTZName       string // defaults to UTC
}

// DefaultOptions returns the spec's defaults (§4.A, §6).
func DefaultOptions() Options {
	return Options{
		MaxMessageLength:      8192,
		MaxFutureDriftSeconds: 300,
	}
}

// Normalizer turns opaque ingest maps into canonical Events. Stateless aside
// from its fixed options; safe for concurrent use.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer with the given options.
func New(opts Options) *Normalizer {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 8192
	}
	if opts.MaxFutureDriftSeconds <= 0 {
		opts.MaxFutureDriftSeconds = 300
	}
	return &Normalizer{opts: opts}
}

// Normalize converts one opaque ingest map into a canonical Event. now is
// passed in (rather than time.Now()) so callers and tests get deterministic
// future-guard behavior. peerAddr is the transport-level peer address, used
// as a last-resort source_ip fallback.
func (n *Normalizer) Normalize(ctx context.Context, raw map[string]interface{}, now time.Time, peerAddr string) (*model.Event, error) {
	raw = flattenECS(raw)

	message, ok := resolveMessage(raw)
	if !ok {
		return nil, ErrInvalidEntry
	}

	jsonBody := extractJSONBody(message)
	var jsonBodySeverity model.Severity
	if jsonBody.found {
		jsonBodySeverity = jsonBody.severity
		// Pino/Bunyan/Winston: the extracted msg text is what we actually store.
		message = jsonBody.message
	}

	message = truncateMessage(message, n.opts.MaxMessageLength)

	severity, facility := resolveHeaderSeverity(raw, jsonBodySeverity)
	severity = enrichSeverityFromContent(severity, message)

	ts := resolveTimestamp(raw, now)
	ts, futureClamped := ApplyFutureGuard(ts, now, n.opts.MaxFutureDriftSeconds)

	host, sourceIP := resolveHostAndSourceIP(raw, peerAddr)

	service, _ := stringField(raw, "service")
	program, _ := stringField(raw, "program")
	traceID, _ := stringField(raw, "trace_id")
	spanID, _ := stringField(raw, "span_id")
	externalID, _ := stringField(raw, "external_id")
	connectorID, _ := stringField(raw, "connector_id")

	var payload json.RawMessage
	if b, err := json.Marshal(raw); err == nil {
		payload = b
	}

	ev := &model.Event{
		ID:             uuid.NewString(),
		ReceivedAt:     now.UTC(),
		Timestamp:      ts,
		Message:        message,
		Severity:       severity,
		Host:           host,
		SourceIP:       sourceIP,
		Service:        service,
		Facility:       facility,
		Program:        program,
		TraceID:        traceID,
		SpanID:         spanID,
		Payload:        payload,
		ExternalID:     externalID,
		ConnectorID:    connectorID,
		FutureClamped:  futureClamped,
	}

	if futureClamped {
		slog.Debug("normalizer: clamped future timestamp", "event_id", ev.ID)
	}

	return ev, nil
}

// ApplyTimezoneCorrection applies §4.A's post-source-match timezone
// correction in place. Called by the ingest writer after source matching
// resolves which MonitoredSystem an event belongs to.
func (n *Normalizer) ApplyTimezoneCorrection(ev *model.Event, sys SystemTZInfo) {
	ev.Timestamp = CorrectTimezone(ev.Timestamp, sys.TZName, sys.TZOffsetMinutes, n.opts.CollectorTZName)
}

// FinalizeHash computes and sets the normalized hash. Must be called after
// redaction so the hash reflects stored (redacted) content (§4.A).
func FinalizeHash(ev *model.Event) {
	ev.NormalizedHash = NormalizedHash(ev.Timestamp, ev.Message, ev.Host, ev.SourceIP, ev.Service, ev.Program, ev.Facility)
}
