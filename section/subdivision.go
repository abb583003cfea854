package section

import (
	"fmt"

	"github.com/xraph/mapsection"
	"github.com/xraph/mapsection/id"
)

// Subdivision is a sample-point spacing and block size shared by every
// section of one job. BasePosition is the map position of block (0, 0);
// when its Y is zero, block rows are counted from the map's horizontal
// axis and sections below it can be produced by mirroring.
type Subdivision struct {
	ID               id.SubdivisionID
	BasePosition     RPoint
	SamplePointDelta RSize
	BlockSize        SizeInt
}

// NewSubdivision returns a subdivision with a fresh identity.
func NewSubdivision(base RPoint, delta RSize, blockSize SizeInt) Subdivision {
	return Subdivision{
		ID:               id.NewSubdivisionID(),
		BasePosition:     base,
		SamplePointDelta: delta,
		BlockSize:        blockSize,
	}
}

// Validate reports a malformed subdivision.
func (s Subdivision) Validate() error {
	if !s.BlockSize.Positive() {
		return fmt.Errorf("subdivision %s block size %s: %w", s.ID, s.BlockSize, mapsection.ErrInvalidBlockSize)
	}
	return nil
}

// Symmetric reports whether block rows are anchored on the map's horizontal
// axis.
func (s Subdivision) Symmetric() bool {
	return s.BasePosition.Y.Sign() == 0
}

// BlockPosition returns the map position of the given block's origin.
func (s Subdivision) BlockPosition(block VectorLong) RPoint {
	steps := VectorLong{
		X: block.X * int64(s.BlockSize.Width),
		Y: block.Y * int64(s.BlockSize.Height),
	}
	return s.BasePosition.Translate(steps, s.SamplePointDelta)
}
