package section

import "fmt"

// PointInt is an integer position, usually a block coordinate on screen.
type PointInt struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// String returns "(x, y)".
func (p PointInt) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// VectorInt is an integer displacement.
type VectorInt struct {
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
}

// VectorLong is a block offset on a subdivision's grid. Block rows below
// the map's horizontal axis have negative Y.
type VectorLong struct {
	X int64 `json:"x" msgpack:"x"`
	Y int64 `json:"y" msgpack:"y"`
}

// Add returns v + o.
func (v VectorLong) Add(o VectorLong) VectorLong {
	return VectorLong{X: v.X + o.X, Y: v.Y + o.Y}
}

// String returns "(x, y)".
func (v VectorLong) String() string { return fmt.Sprintf("(%d, %d)", v.X, v.Y) }

// SizeInt is a size in pixels or blocks.
type SizeInt struct {
	Width  int `json:"width" msgpack:"width"`
	Height int `json:"height" msgpack:"height"`
}

// NumberOfCells returns Width * Height.
func (s SizeInt) NumberOfCells() int { return s.Width * s.Height }

// Positive reports whether both dimensions are greater than zero.
func (s SizeInt) Positive() bool { return s.Width > 0 && s.Height > 0 }

// String returns "WxH".
func (s SizeInt) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }
