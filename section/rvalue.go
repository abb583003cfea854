package section

import (
	"fmt"
	"math/big"
)

// RValue is an arbitrary-precision binary fixed-point number equal to
// Value * 2^Exponent.
type RValue struct {
	Value    *big.Int
	Exponent int
}

// NewRValue returns v * 2^exp.
func NewRValue(v int64, exp int) RValue {
	return RValue{Value: big.NewInt(v), Exponent: exp}
}

func (r RValue) int() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return r.Value
}

// Add returns r + o, expressed at the smaller of the two exponents.
func (r RValue) Add(o RValue) RValue {
	a, b, exp := align(r, o)
	return RValue{Value: a.Add(a, b), Exponent: exp}
}

// MulInt returns r * n.
func (r RValue) MulInt(n int64) RValue {
	return RValue{Value: new(big.Int).Mul(r.int(), big.NewInt(n)), Exponent: r.Exponent}
}

// Sign returns -1, 0 or +1.
func (r RValue) Sign() int { return r.int().Sign() }

// Cmp compares r and o numerically.
func (r RValue) Cmp(o RValue) int {
	a, b, _ := align(r, o)
	return a.Cmp(b)
}

// String returns "value*2^exp".
func (r RValue) String() string { return fmt.Sprintf("%s*2^%d", r.int().String(), r.Exponent) }

func align(r, o RValue) (*big.Int, *big.Int, int) {
	a := new(big.Int).Set(r.int())
	b := new(big.Int).Set(o.int())
	switch {
	case r.Exponent > o.Exponent:
		a.Lsh(a, uint(r.Exponent-o.Exponent))
		return a, b, o.Exponent
	case o.Exponent > r.Exponent:
		b.Lsh(b, uint(o.Exponent-r.Exponent))
		return a, b, r.Exponent
	default:
		return a, b, r.Exponent
	}
}

// RPoint is a map-space position.
type RPoint struct {
	X RValue
	Y RValue
}

// Translate returns p moved by the given number of sample steps.
func (p RPoint) Translate(steps VectorLong, delta RSize) RPoint {
	return RPoint{
		X: p.X.Add(delta.Width.MulInt(steps.X)),
		Y: p.Y.Add(delta.Height.MulInt(steps.Y)),
	}
}

// RSize is a map-space extent, typically the distance between two
// adjacent sample points.
type RSize struct {
	Width  RValue
	Height RValue
}
