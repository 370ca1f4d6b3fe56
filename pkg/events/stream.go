// Package events implements the dashboard's real-time score stream (§6
// GET /api/v1/scores/stream): one goroutine per connection, a 15s poll
// loop, and a heartbeat comment line when nothing changed. There is no
// cross-process fan-out here — each connection polls the store directly,
// so there is nothing to subscribe/broadcast across pods.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	pollInterval = 15 * time.Second
	lookback     = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// SystemSummary is the minimal system shape sent in the init message.
type SystemSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoreUpdate is one meta-analysis result surfaced to the dashboard.
type ScoreUpdate struct {
	WindowID   string             `json:"window_id"`
	SystemID   string             `json:"system_id"`
	CreatedAt  string             `json:"created_at"`
	Scores     map[string]float64 `json:"scores"`
	Summary    string             `json:"summary,omitempty"`
}

// Store is the read surface the stream needs.
type Store interface {
	// StreamSystems lists the systems sent in the init message.
	StreamSystems(ctx context.Context) ([]SystemSummary, error)
	// RecentMetaResults returns meta_results (as effective-score updates)
	// created at or after since.
	RecentMetaResults(ctx context.Context, since time.Time) ([]ScoreUpdate, error)
}

// Flusher is satisfied by http.ResponseWriter and gin's gin.ResponseWriter.
type Flusher interface {
	io.Writer
	Flush()
}

// Stream serves one SSE connection to completion. disconnected is polled
// before and after every blocking store call because the client may
// disconnect mid-query (§5: "re-check after every async store call").
func Stream(ctx context.Context, store Store, w Flusher, disconnected <-chan struct{}) {
	if isDisconnected(disconnected) {
		return
	}

	systems, err := store.StreamSystems(ctx)
	if err != nil {
		slog.Error("events: failed to load systems for stream init", "error", err)
		return
	}
	if isDisconnected(disconnected) {
		return
	}

	if err := writeEvent(w, map[string]interface{}{
		"type":    "init",
		"systems": systems,
	}); err != nil {
		return
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	since := time.Now()
	for {
		select {
		case <-disconnected:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if isDisconnected(disconnected) {
				return
			}

			cutoff := time.Now().Add(-lookback)
			if cutoff.Before(since) {
				cutoff = since
			}

			updates, err := store.RecentMetaResults(ctx, cutoff)
			if err != nil {
				slog.Error("events: failed to poll recent meta results", "error", err)
				continue
			}
			if isDisconnected(disconnected) {
				return
			}

			since = time.Now()

			if len(updates) == 0 {
				if err := writeHeartbeat(w); err != nil {
					return
				}
				continue
			}

			if err := writeEvent(w, map[string]interface{}{
				"type":    "update",
				"results": updates,
			}); err != nil {
				return
			}
		}
	}
}

func isDisconnected(disconnected <-chan struct{}) bool {
	select {
	case <-disconnected:
		return true
	default:
		return false
	}
}

func writeEvent(w Flusher, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("events: failed to marshal stream event", "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		slog.Warn("events: failed to write stream event", "error", err)
		return err
	}
	w.Flush()
	return nil
}

func writeHeartbeat(w Flusher) error {
	if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
		slog.Warn("events: failed to write heartbeat", "error", err)
		return err
	}
	w.Flush()
	return nil
}
