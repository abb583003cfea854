package backend

import (
	"context"

	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// Generator computes the values of one section into dst, whose shape
// matches req's block size. Values are written in the orientation of
// req.BlockOffset.
type Generator interface {
	Generate(ctx context.Context, req *section.Request, dst *pool.Vectors) error
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req *section.Request, dst *pool.Vectors) error

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req *section.Request, dst *pool.Vectors) error {
	return f(ctx, req, dst)
}

// Saver stores generated responses. cache.Store satisfies it.
type Saver interface {
	SaveResponse(ctx context.Context, req *section.Request, resp *section.Response) error
}
