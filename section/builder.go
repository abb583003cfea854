package section

import "github.com/xraph/mapsection/pool"

// Builder turns responses into sections.
type Builder struct {
	pools *pool.Shapes
}

// NewBuilder returns a builder that draws flipped buffers from pools.
func NewBuilder(pools *pool.Shapes) *Builder {
	return &Builder{pools: pools}
}

// Pools returns the builder's buffer pools.
func (b *Builder) Pools() *pool.Shapes { return b.pools }

// Build creates the section for req from resp, taking over the response's
// reference to its values. A nil or empty response yields an empty
// section. Values for an inverted request are copied flipped into a fresh
// buffer of the request's block shape; values of any other shape are
// dropped and the section is empty.
func (b *Builder) Build(req *Request, resp *Response, fromCache bool) *Section {
	s := &Section{
		JobNumber:                      req.JobNumber,
		RequestNumber:                  req.RequestNumber,
		SubdivisionID:                  req.Subdivision.ID,
		BlockOffset:                    req.BlockOffset,
		JobBlockOffset:                 req.JobBlockOffset,
		ScreenPosition:                 req.ScreenPosition,
		ScreenPositionRelativeToCenter: req.ScreenPositionRelativeToCenter,
		Size:                           req.BlockSize(),
		TargetIterations:               req.Settings.TargetIterations,
		IsInverted:                     req.IsInverted,
		RequestCancelled:               req.Cancelled(),
		FromCache:                      fromCache,
	}
	if resp == nil {
		return s
	}
	if resp.Cancelled {
		s.RequestCancelled = true
	}
	if resp.IsEmpty() {
		return s
	}

	values := resp.Vectors
	resp.Vectors = nil

	if !req.IsInverted {
		s.Vectors = values
		return s
	}

	shape := req.BlockSize()
	if shape.Width <= 0 || shape.Height <= 0 {
		shape = SizeInt{Width: values.Value.Width, Height: values.Value.Height}
	}
	flipped := b.pools.Obtain(shape.Width, shape.Height)
	err := flipped.Value.CopyFlipped(values.Value)
	values.Release()
	if err != nil {
		flipped.Release()
		return s
	}
	s.Vectors = flipped
	return s
}
