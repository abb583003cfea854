// Package cache defines the result cache consulted before any section is
// generated. Backends live in subpackages: memory, redis, postgres and
// mongo.
package cache

import (
	"context"
	"fmt"

	"github.com/xraph/mapsection/section"
)

// Key identifies a stored section: one block of one subdivision computed to
// a given iteration target.
type Key struct {
	SubdivisionID    string
	BlockX           int64
	BlockY           int64
	TargetIterations int
}

// KeyFor returns the cache key for req.
func KeyFor(req *section.Request) Key {
	return Key{
		SubdivisionID:    req.Subdivision.ID.String(),
		BlockX:           req.BlockOffset.X,
		BlockY:           req.BlockOffset.Y,
		TargetIterations: req.Settings.TargetIterations,
	}
}

// String returns "subdivision:x:y:iterations".
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", k.SubdivisionID, k.BlockX, k.BlockY, k.TargetIterations)
}

// Result pairs a request with its cached response. Response is nil on a
// miss.
type Result struct {
	Request  *section.Request
	Response *section.Response
}

// Hit reports whether the request was found.
func (r Result) Hit() bool { return r.Response != nil }

// Store is the result cache.
type Store interface {
	// FetchResponses looks up every request in one batch. The returned
	// slice has one Result per request, in request order.
	FetchResponses(ctx context.Context, reqs []*section.Request) ([]Result, error)

	// SaveResponse stores a generated response for req. Empty responses
	// are not stored.
	SaveResponse(ctx context.Context, req *section.Request, resp *section.Response) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
