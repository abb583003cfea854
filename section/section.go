package section

import (
	"github.com/xraph/mapsection/id"
	"github.com/xraph/mapsection/pool"
)

// Callback receives sections as they become available. The callback owns
// the section and should call Release once its values are consumed.
type Callback func(*Section)

// Section is a block of the map ready for display.
type Section struct {
	JobNumber     int
	RequestNumber int

	SubdivisionID  id.SubdivisionID
	BlockOffset    VectorLong
	JobBlockOffset VectorLong

	ScreenPosition                 PointInt
	ScreenPositionRelativeToCenter VectorInt
	Size                           SizeInt
	TargetIterations               int
	IsInverted                     bool

	Vectors *pool.Item[*pool.Vectors]

	RequestCancelled bool
	FromCache        bool
	IsLastSection    bool
}

// IsEmpty reports whether the section is a placeholder without values.
func (s *Section) IsEmpty() bool { return s.Vectors == nil }

// Release returns the section's values to their pool.
func (s *Section) Release() {
	if s.Vectors != nil {
		s.Vectors.Release()
		s.Vectors = nil
	}
}
