// Package aiconfig resolves the process-wide AI connection settings from
// app_config, cached with a 30-second TTL and explicit invalidation (§4.F).
package aiconfig

import (
	"context"
	"sync"
	"time"

	"github.com/logpulse/logpulse/pkg/model"
)

const ttl = 30 * time.Second

// Store is the persistence surface this package needs: a single read of
// the process-wide app_config row set.
type Store interface {
	LoadAppConfig(ctx context.Context) (map[string]string, error)
}

type cacheEntry struct {
	config   model.AIConfig
	cachedAt time.Time
}

// Reader caches the resolved AIConfig for ttl, re-reading app_config on
// expiry or explicit Invalidate (the teacher's own app_config cache idiom,
// generalized past a single global value to per-task model overrides).
type Reader struct {
	mu    sync.Mutex
	store Store
	entry *cacheEntry
}

// New builds a Reader backed by store.
func New(store Store) *Reader {
	return &Reader{store: store}
}

// Invalidate drops the cached value, forcing the next Resolve to re-read
// app_config.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	r.entry = nil
	r.mu.Unlock()
}

// Resolve returns the current AIConfig, re-reading app_config if the cache
// is empty or older than 30s.
func (r *Reader) Resolve(ctx context.Context) (model.AIConfig, error) {
	r.mu.Lock()
	if r.entry != nil && time.Since(r.entry.cachedAt) < ttl {
		cfg := r.entry.config
		r.mu.Unlock()
		return cfg, nil
	}
	r.mu.Unlock()

	raw, err := r.store.LoadAppConfig(ctx)
	if err != nil {
		return model.AIConfig{}, err
	}
	cfg := decodeAIConfig(raw)

	r.mu.Lock()
	r.entry = &cacheEntry{config: cfg, cachedAt: time.Now()}
	r.mu.Unlock()

	return cfg, nil
}
