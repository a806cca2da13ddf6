// Package providers supplies daily bar histories to the engine. The core
// treats the data source as an external collaborator: anything that can
// produce a validated series.Series qualifies.
package providers

import (
	"context"

	"github.com/tectoniq/seismograph/internal/domain/series"
)

// Provider fetches the full daily history for a symbol.
type Provider interface {
	FetchDaily(ctx context.Context, symbol string) (*series.Series, error)
}

// Caching wraps a remote provider with a local CSV store: hits are served
// from disk, misses are fetched and written through.
type Caching struct {
	store  *CSVStore
	remote Provider
}

// NewCaching builds the read-through provider.
func NewCaching(store *CSVStore, remote Provider) *Caching {
	return &Caching{store: store, remote: remote}
}

// FetchDaily serves from the store when possible and falls back to the
// remote, persisting what it fetched.
func (c *Caching) FetchDaily(ctx context.Context, symbol string) (*series.Series, error) {
	if s, err := c.store.Load(symbol); err == nil {
		return s, nil
	}
	s, err := c.remote.FetchDaily(ctx, symbol)
	if err != nil {
		return nil, err
	}
	// Best effort: a failed cache write must not fail the fetch.
	_ = c.store.Save(s)
	return s, nil
}

// AsProvider adapts the store for offline use, serving only what is
// already on disk.
func (s *CSVStore) AsProvider() Provider {
	return localProvider{store: s}
}

type localProvider struct {
	store *CSVStore
}

func (p localProvider) FetchDaily(_ context.Context, symbol string) (*series.Series, error) {
	return p.store.Load(symbol)
}
