package pool

import (
	"fmt"
	"sync"

	"github.com/xraph/mapsection"
)

// Vectors holds one section's per-pixel values in row-major order.
type Vectors struct {
	Width  int
	Height int

	Counts           []uint32
	EscapeVelocities []uint16
}

// NewVectors allocates zeroed buffers for a width x height block.
func NewVectors(width, height int) *Vectors {
	n := width * height
	return &Vectors{
		Width:            width,
		Height:           height,
		Counts:           make([]uint32, n),
		EscapeVelocities: make([]uint16, n),
	}
}

// Len returns the number of pixels the buffers hold.
func (v *Vectors) Len() int { return v.Width * v.Height }

// Load copies counts and escape velocities into v. Escape velocities may be
// nil when they were not computed.
func (v *Vectors) Load(counts []uint32, escapes []uint16) error {
	if len(counts) != v.Len() {
		return fmt.Errorf("load counts: got %d values for %dx%d: %w", len(counts), v.Width, v.Height, mapsection.ErrBufferShape)
	}
	if escapes != nil && len(escapes) != v.Len() {
		return fmt.Errorf("load escape velocities: got %d values for %dx%d: %w", len(escapes), v.Width, v.Height, mapsection.ErrBufferShape)
	}

	copy(v.Counts, counts)
	if escapes != nil {
		copy(v.EscapeVelocities, escapes)
	} else {
		clear(v.EscapeVelocities)
	}
	return nil
}

// CopyFlipped writes src into v with its rows in reverse order.
func (v *Vectors) CopyFlipped(src *Vectors) error {
	if src.Width != v.Width || src.Height != v.Height {
		return fmt.Errorf("flip %dx%d into %dx%d: %w", src.Width, src.Height, v.Width, v.Height, mapsection.ErrBufferShape)
	}
	w := v.Width
	for y := range v.Height {
		from := (v.Height - 1 - y) * w
		to := y * w
		copy(v.Counts[to:to+w], src.Counts[from:from+w])
		copy(v.EscapeVelocities[to:to+w], src.EscapeVelocities[from:from+w])
	}
	return nil
}

// VectorsPool lends Vectors of a single block shape.
type VectorsPool struct {
	*Pool[*Vectors]

	width  int
	height int
}

// NewVectorsPool creates a pool of width x height buffers.
func NewVectorsPool(width, height, maxFree int) *VectorsPool {
	return &VectorsPool{
		Pool: New(maxFree, func() *Vectors {
			return NewVectors(width, height)
		}),
		width:  width,
		height: height,
	}
}

// Shape returns the block dimensions this pool lends.
func (vp *VectorsPool) Shape() (width, height int) { return vp.width, vp.height }

// Shapes lends Vectors of any block shape, keeping one VectorsPool per
// shape.
type Shapes struct {
	mu      sync.Mutex
	maxFree int
	pools   map[[2]int]*VectorsPool
}

// NewShapes creates a Shapes whose pools each keep at most maxFree idle
// buffers.
func NewShapes(maxFree int) *Shapes {
	return &Shapes{maxFree: maxFree, pools: make(map[[2]int]*VectorsPool)}
}

// Get returns the pool for width x height buffers, creating it on first use.
func (s *Shapes) Get(width, height int) *VectorsPool {
	key := [2]int{width, height}

	s.mu.Lock()
	defer s.mu.Unlock()
	vp, ok := s.pools[key]
	if !ok {
		vp = NewVectorsPool(width, height, s.maxFree)
		s.pools[key] = vp
	}
	return vp
}

// Obtain lends a width x height buffer.
func (s *Shapes) Obtain(width, height int) *Item[*Vectors] {
	return s.Get(width, height).Obtain()
}
