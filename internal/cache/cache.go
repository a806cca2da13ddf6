// Package cache provides the injectable classification cache. The engine
// itself is pure; callers that want memoization own a Cache instance and
// pass it to the application layer. Keys bind the symbol, the as-of date,
// and a fingerprint of the classifier parameters, so a config change can
// never serve stale states.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tectoniq/seismograph/internal/domain/classifier"
)

// Cache stores MarketState snapshots by key.
type Cache interface {
	Get(ctx context.Context, key string) (classifier.MarketState, bool, error)
	Set(ctx context.Context, key string, state classifier.MarketState) error
}

// Key builds the canonical cache key for a classification.
func Key(symbol string, asOf time.Time, params classifier.Params) string {
	return fmt.Sprintf("state:%s:%s:%s", symbol, asOf.Format("2006-01-02"), fingerprint(params))
}

func fingerprint(params classifier.Params) string {
	raw, _ := json.Marshal(params)
	h := fnv.New64a()
	h.Write(raw)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Memory is an in-process TTL cache.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time // injectable for testing
}

type memoryEntry struct {
	state   classifier.MarketState
	expires time.Time
}

// NewMemory creates an in-memory cache. ttl <= 0 means entries never expire.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached state if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (classifier.MarketState, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return classifier.MarketState{}, false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return classifier.MarketState{}, false, nil
	}
	return entry.state, true, nil
}

// Set stores a state under key.
func (m *Memory) Set(_ context.Context, key string, state classifier.MarketState) error {
	entry := memoryEntry{state: state}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
