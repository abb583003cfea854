package cache

import (
	"fmt"
	"time"

	"github.com/xraph/mapsection/codec"
	"github.com/xraph/mapsection/id"
	"github.com/xraph/mapsection/pool"
	"github.com/xraph/mapsection/section"
)

// ToRecord converts a generated response into its stored form.
func ToRecord(req *section.Request, resp *section.Response) codec.Record {
	v := resp.Vectors.Value
	rec := codec.Record{
		ID:               id.NewSectionID().String(),
		SubdivisionID:    req.Subdivision.ID.String(),
		BlockX:           req.BlockOffset.X,
		BlockY:           req.BlockOffset.Y,
		Width:            v.Width,
		Height:           v.Height,
		TargetIterations: req.Settings.TargetIterations,
		Counts:           append([]uint32(nil), v.Counts...),
		CreatedAt:        time.Now().UTC(),
	}
	if req.Settings.UseEscapeVelocities {
		rec.EscapeVelocities = append([]uint16(nil), v.EscapeVelocities...)
	}
	return rec
}

// FromRecord loads rec into a buffer lent from pools and returns the
// response for req.
func FromRecord(rec codec.Record, req *section.Request, pools *pool.Shapes) (*section.Response, error) {
	it := pools.Obtain(rec.Width, rec.Height)
	if err := it.Value.Load(rec.Counts, rec.EscapeVelocities); err != nil {
		it.Release()
		return nil, fmt.Errorf("load record %s: %w", rec.ID, err)
	}

	resp := section.EmptyResponse(req, false)
	resp.Vectors = it
	return resp, nil
}

// Savable reports whether resp should be written to a cache.
func Savable(resp *section.Response) bool {
	return !resp.IsEmpty() && !resp.Cancelled
}
