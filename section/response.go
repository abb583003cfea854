package section

import (
	"time"

	"github.com/xraph/mapsection/id"
	"github.com/xraph/mapsection/pool"
)

// Response carries the values produced for one request. Vectors is nil for
// an empty response.
//
// Values are always in the orientation of BlockOffset; the Builder flips
// them for inverted requests.
type Response struct {
	RequestNumber    int
	SubdivisionID    id.SubdivisionID
	BlockOffset      VectorLong
	TargetIterations int

	Vectors *pool.Item[*pool.Vectors]

	Cancelled          bool
	GenerationDuration time.Duration
}

// EmptyResponse returns a response without values for req.
func EmptyResponse(req *Request, cancelled bool) *Response {
	return &Response{
		RequestNumber:    req.RequestNumber,
		SubdivisionID:    req.Subdivision.ID,
		BlockOffset:      req.BlockOffset,
		TargetIterations: req.Settings.TargetIterations,
		Cancelled:        cancelled,
	}
}

// IsEmpty reports whether the response has no values.
func (r *Response) IsEmpty() bool { return r == nil || r.Vectors == nil }

// Share returns a copy of r for another consumer, adding a reference to its
// values.
func (r *Response) Share(requestNumber int) *Response {
	cp := *r
	cp.RequestNumber = requestNumber
	if cp.Vectors != nil {
		cp.Vectors.Retain()
	}
	return &cp
}

// Release drops the response's reference to its values.
func (r *Response) Release() {
	if r != nil && r.Vectors != nil {
		r.Vectors.Release()
		r.Vectors = nil
	}
}

// ResponseFunc receives the response for a submitted request. It is called
// at most once per request and may be called from any goroutine.
type ResponseFunc func(req *Request, resp *Response)
