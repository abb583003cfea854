package section

import (
	"fmt"

	"github.com/xraph/mapsection"
)

// Viewport is the visible region of the map in one subdivision.
type Viewport struct {
	Subdivision Subdivision

	// BlockOffset is the subdivision block holding the viewport's first
	// (bottom-left) pixel.
	BlockOffset VectorLong

	// CanvasOffset is the pixel position of the viewport's first pixel
	// within its block, each component in [0, block size).
	CanvasOffset VectorInt

	// Size is the viewport's size in pixels.
	Size SizeInt
}

// Validate reports a malformed viewport.
func (v Viewport) Validate() error {
	if err := v.Subdivision.Validate(); err != nil {
		return err
	}
	if !v.Size.Positive() {
		return fmt.Errorf("viewport size %s: %w", v.Size, mapsection.ErrInvalidViewport)
	}
	bs := v.Subdivision.BlockSize
	if v.CanvasOffset.X < 0 || v.CanvasOffset.X >= bs.Width || v.CanvasOffset.Y < 0 || v.CanvasOffset.Y >= bs.Height {
		return fmt.Errorf("viewport canvas offset (%d, %d) outside block %s: %w",
			v.CanvasOffset.X, v.CanvasOffset.Y, bs, mapsection.ErrInvalidViewport)
	}
	return nil
}

// Extent returns the number of blocks needed to cover the viewport in each
// direction.
func (v Viewport) Extent() SizeInt {
	bs := v.Subdivision.BlockSize
	return SizeInt{
		Width:  ceilDiv(v.Size.Width+v.CanvasOffset.X, bs.Width),
		Height: ceilDiv(v.Size.Height+v.CanvasOffset.Y, bs.Height),
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
