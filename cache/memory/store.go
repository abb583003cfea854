// Package memory implements cache.Store in process. Safe for concurrent
// access. Intended for unit testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/cache"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithPools sets the buffer pools responses are lent from.
func WithPools(p *pool.Shapes) Option {
	return func(s *Store) { s.pools = p }
}

// Store is an in-memory result cache.
type Store struct {
	mu      sync.RWMutex
	records map[cache.Key]codec.Record
	closed  bool

	pools *pool.Shapes
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[cache.Key]codec.Record),
		pools:   pool.NewShapes(mapsection.DefaultConfig().PoolMaxFree),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchResponses returns a Result per request; misses have a nil Response.
func (s *Store) FetchResponses(_ context.Context, reqs []*section.Request) ([]cache.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, mapsection.ErrCacheClosed
	}

	results := make([]cache.Result, len(reqs))
	for i, req := range reqs {
		results[i].Request = req
		rec, ok := s.records[cache.KeyFor(req)]
		if !ok {
			continue
		}
		resp, err := cache.FromRecord(rec, req, s.pools)
		if err != nil {
			releaseAll(results[:i])
			return nil, err
		}
		results[i].Response = resp
	}
	return results, nil
}

// SaveResponse stores a copy of resp's values.
func (s *Store) SaveResponse(_ context.Context, req *section.Request, resp *section.Response) error {
	if !cache.Savable(resp) {
		return nil
	}
	rec := cache.ToRecord(req, resp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return mapsection.ErrCacheClosed
	}
	s.records[cache.KeyFor(req)] = rec
	return nil
}

// Put stores rec directly, for seeding.
func (s *Store) Put(key cache.Key, rec codec.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
}

// Len returns the number of stored sections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping reports ErrCacheClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return mapsection.ErrCacheClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func releaseAll(results []cache.Result) {
	for _, r := range results {
		r.Response.Release()
	}
}
