// Package redis implements cache.Store on Redis. Each section is one string
// value holding the encoded record; a Set per subdivision indexes its
// sections for bulk deletion.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := rediscache.New(client, rediscache.WithTTL(24*time.Hour))
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/mapsection/cache"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTTL expires stored sections after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithCodec sets the record codec. Defaults to msgpack.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithPools sets the buffer pools responses are lent from.
func WithPools(p *pool.Shapes) Option {
	return func(s *Store) { s.pools = p }
}

// Store is a Redis-backed result cache.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
	codec  codec.Codec
	pools  *pool.Shapes
	ttl    time.Duration
}

// New creates a Redis-backed cache. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
		codec:  codec.Msgpack{},
		pools:  pool.NewShapes(1000),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// FetchResponses looks every request up with a single MGET.
func (s *Store) FetchResponses(ctx context.Context, reqs []*section.Request) ([]cache.Result, error) {
	results := make([]cache.Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	keys := make([]string, len(reqs))
	for i, req := range reqs {
		keys[i] = sectionKey(cache.KeyFor(req))
		results[i].Request = req
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mapsection/redis: fetch sections: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}

		var rec codec.Record
		if err := s.codec.Unmarshal([]byte(raw), &rec); err != nil {
			s.logger.Warn("discarding undecodable section",
				slog.String("key", keys[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		resp, err := cache.FromRecord(rec, reqs[i], s.pools)
		if err != nil {
			s.logger.Warn("discarding malformed section",
				slog.String("key", keys[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		results[i].Response = resp
	}
	return results, nil
}

// SaveResponse writes the section and indexes it under its subdivision.
func (s *Store) SaveResponse(ctx context.Context, req *section.Request, resp *section.Response) error {
	if !cache.Savable(resp) {
		return nil
	}

	key := cache.KeyFor(req)
	data, err := s.codec.Marshal(cache.ToRecord(req, resp))
	if err != nil {
		return fmt.Errorf("mapsection/redis: encode section: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sectionKey(key), data, s.ttl)
	pipe.SAdd(ctx, subdivisionIndexKey(key.SubdivisionID), sectionKey(key))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mapsection/redis: save section: %w", err)
	}
	return nil
}

// DeleteSubdivision removes every stored section of a subdivision and
// returns how many keys were deleted.
func (s *Store) DeleteSubdivision(ctx context.Context, subdivisionID string) (int64, error) {
	idx := subdivisionIndexKey(subdivisionID)
	keys, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("mapsection/redis: list subdivision sections: %w", err)
	}

	pipe := s.client.TxPipeline()
	var del *goredis.IntCmd
	if len(keys) > 0 {
		del = pipe.Del(ctx, keys...)
	}
	pipe.Del(ctx, idx)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("mapsection/redis: delete subdivision: %w", err)
	}
	if del == nil {
		return 0, nil
	}
	return del.Val(), nil
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
