package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/mapsection/cache"
	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Compile-time interface check.
var _ cache.Store = (*Store)(nil)

// Store is a MongoDB result cache.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
	codec  codec.Codec
	pools  *pool.Shapes
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCodec sets the payload codec. Defaults to msgpack.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithPools sets the buffer pools responses are lent from.
func WithPools(p *pool.Shapes) Option {
	return func(s *Store) { s.pools = p }
}

// New creates a MongoDB-backed cache on db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		codec:  codec.Msgpack{},
		pools:  pool.NewShapes(1000),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for advanced usage.
func (s *Store) DB() *mongod.Database { return s.db }

// Migrate creates the collection's indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(colSections).Indexes().CreateMany(ctx, []mongod.IndexModel{
		{
			Keys: bson.D{
				{Key: "subdivision_id", Value: 1},
				{Key: "block_x", Value: 1},
				{Key: "block_y", Value: 1},
				{Key: "target_iterations", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mapsection/mongo: migrate %s indexes: %w", colSections, err)
	}
	return nil
}

// FetchResponses looks every request up with one $or query.
func (s *Store) FetchResponses(ctx context.Context, reqs []*section.Request) ([]cache.Result, error) {
	results := make([]cache.Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}

	index := make(map[cache.Key][]int, len(reqs))
	keys := make([]cache.Key, 0, len(reqs))
	for i, req := range reqs {
		results[i].Request = req
		k := cache.KeyFor(req)
		if _, seen := index[k]; !seen {
			keys = append(keys, k)
		}
		index[k] = append(index[k], i)
	}

	cur, err := s.db.Collection(colSections).Find(ctx, batchFilter(keys))
	if err != nil {
		return nil, fmt.Errorf("mapsection/mongo: fetch sections: %w", err)
	}

	var models []sectionModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("mapsection/mongo: decode sections: %w", err)
	}

	for i := range models {
		m := &models[i]
		var rec codec.Record
		if err := s.codec.Unmarshal(m.Payload, &rec); err != nil {
			s.logger.Warn("discarding undecodable section",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, ri := range index[m.key()] {
			resp, err := cache.FromRecord(rec, reqs[ri], s.pools)
			if err != nil {
				s.logger.Warn("discarding malformed section",
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
				break
			}
			results[ri].Response = resp
		}
	}
	return results, nil
}

// SaveResponse upserts the section.
func (s *Store) SaveResponse(ctx context.Context, req *section.Request, resp *section.Response) error {
	if !cache.Savable(resp) {
		return nil
	}

	rec := cache.ToRecord(req, resp)
	payload, err := s.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mapsection/mongo: encode section: %w", err)
	}

	k := cache.KeyFor(req)
	_, err = s.db.Collection(colSections).UpdateOne(ctx,
		keyFilter(k),
		bson.M{
			"$set": bson.M{
				"payload":    payload,
				"created_at": rec.CreatedAt,
			},
			"$setOnInsert": bson.M{"_id": rec.ID},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mapsection/mongo: save section: %w", err)
	}
	return nil
}

// DeleteSubdivision removes every stored section of a subdivision.
func (s *Store) DeleteSubdivision(ctx context.Context, subdivisionID string) (int64, error) {
	res, err := s.db.Collection(colSections).DeleteMany(ctx, bson.M{"subdivision_id": subdivisionID})
	if err != nil {
		return 0, fmt.Errorf("mapsection/mongo: delete subdivision: %w", err)
	}
	return res.DeletedCount, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the database handle.
func (s *Store) Close() error { return nil }
