// Package ingest implements the batch ingest writer (§4.D): body-shape
// parsing, multiline reassembly, normalize → redact → source-match,
// chunked idempotent persistence, and discovery buffering for unmatched
// entries.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalize"
	"github.com/logpulse/logpulse/pkg/redact"
	"github.com/logpulse/logpulse/pkg/sourcematch"
)

const (
	maxBatchSize   = 1000
	persistChunkSize = 100
)

// Result is the ingest response shape (§4.D): `{accepted, rejected, errors?}`.
type Result struct {
	Accepted int
	Rejected int
	Errors   []string
}

// Store is the persistence surface the writer needs.
type Store interface {
	// InsertEvents persists a chunk of events in the current transaction,
	// ON CONFLICT (normalized_hash, timestamp) DO NOTHING.
	InsertEvents(ctx context.Context, events []*model.Event) error
	// BufferDiscovery fire-and-forgets an unmatched entry into the
	// discovery buffer; errors are logged, never surfaced to the caller.
	BufferDiscovery(ctx context.Context, entry model.DiscoveryBufferEntry)
	// SystemTZInfo returns the timezone facts for a resolved system.
	SystemTZInfo(ctx context.Context, systemID string) (normalize.SystemTZInfo, error)
}

// Writer accepts raw ingest payloads for one connector/source, normalizes,
// redacts, source-matches, and persists them.
type Writer struct {
	normalizer *normalize.Normalizer
	redactor   *redact.Redactor
	matcher    *sourcematch.Matcher
	buffer     *normalize.FragmentBuffer
	store      Store
}

// New builds a Writer. matcher and redactor are rebuilt by the caller
// whenever log_sources or custom redaction patterns change.
func New(normalizer *normalize.Normalizer, redactor *redact.Redactor, matcher *sourcematch.Matcher, buffer *normalize.FragmentBuffer, store Store) *Writer {
	return &Writer{normalizer: normalizer, redactor: redactor, matcher: matcher, buffer: buffer, store: store}
}

// ParseBody accepts the three body shapes from §4.D: {events: [...]}, a
// bare array, or a single object carrying message/msg.
func ParseBody(body []byte) ([]map[string]interface{}, error) {
	var wrapped struct {
		Events []map[string]interface{} `json:"events"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Events != nil {
		return wrapped.Events, nil
	}

	var bare []map[string]interface{}
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var single map[string]interface{}
	if err := json.Unmarshal(body, &single); err == nil {
		if _, hasMsg := single["message"]; hasMsg {
			return []map[string]interface{}{single}, nil
		}
		if _, hasMsg := single["msg"]; hasMsg {
			return []map[string]interface{}{single}, nil
		}
	}

	return nil, fmt.Errorf("ingest: unrecognized body shape")
}

// Ingest processes one batch: reassembles multiline entries, normalizes,
// redacts, source-matches, and persists in chunks. peerAddr is the
// transport-level peer address for source_ip fallback.
func (w *Writer) Ingest(ctx context.Context, entries []map[string]interface{}, peerAddr string) Result {
	if len(entries) > maxBatchSize {
		entries = entries[:maxBatchSize]
	}
	now := time.Now()

	entries = w.normalizer.ReassembleBatch(entries, now, w.buffer)

	var accepted []*model.Event
	var result Result

	for _, raw := range entries {
		ev, err := w.normalizer.Normalize(ctx, raw, now, peerAddr)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		ev.Message = w.redactor.RedactMessage(ev.Message)
		if len(ev.Payload) > 0 {
			var payloadMap map[string]interface{}
			if jsonErr := json.Unmarshal(ev.Payload, &payloadMap); jsonErr == nil {
				redacted := w.redactor.RedactPayload(payloadMap)
				if b, marshalErr := json.Marshal(redacted); marshalErr == nil {
					ev.Payload = b
				}
			}
		}

		match := w.matcher.Resolve(ev.ConnectorID, ev.Host, ev.SourceIP, ev.Program)
		if !match.Found {
			w.store.BufferDiscovery(ctx, model.DiscoveryBufferEntry{
				Host:          ev.Host,
				SourceIP:      ev.SourceIP,
				Program:       ev.Program,
				Facility:      ev.Facility,
				Severity:      ev.Severity,
				MessageSample: ev.Message,
				ReceivedAt:    ev.ReceivedAt.Format(time.RFC3339Nano),
			})
			result.Rejected++
			continue
		}

		ev.SystemID = match.SystemID
		ev.LogSourceID = match.LogSourceID

		if tz, err := w.store.SystemTZInfo(ctx, match.SystemID); err == nil {
			w.normalizer.ApplyTimezoneCorrection(ev, tz)
		}

		normalize.FinalizeHash(ev)
		accepted = append(accepted, ev)
	}

	for start := 0; start < len(accepted); start += persistChunkSize {
		end := start + persistChunkSize
		if end > len(accepted) {
			end = len(accepted)
		}
		if err := w.store.InsertEvents(ctx, accepted[start:end]); err != nil {
			slog.Error("ingest: failed to persist event chunk", "error", err, "chunk_size", end-start)
			result.Rejected += end - start
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Accepted += end - start
	}

	return result
}
