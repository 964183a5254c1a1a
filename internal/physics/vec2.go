package physics

import "math"

// Vec2 is a 2D vector with fixed-precision arithmetic so that two peers
// stepping the same inputs land on the same numbers.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// fix rounds to 4 decimal places.
func fix(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return math.Round(n*10000) / 10000
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: fix(x), Y: fix(y)}
}

func (v Vec2) Plus(o Vec2) Vec2 {
	return Vec2{X: fix(v.X + o.X), Y: fix(v.Y + o.Y)}
}

func (v Vec2) Minus(o Vec2) Vec2 {
	return Vec2{X: fix(v.X - o.X), Y: fix(v.Y - o.Y)}
}

func (v Vec2) Times(s float64) Vec2 {
	return Vec2{X: fix(v.X * s), Y: fix(v.Y * s)}
}

func (v Vec2) Dot(o Vec2) float64 {
	return fix(v.X*o.X + v.Y*o.Y)
}

func (v Vec2) Magnitude() float64 {
	return fix(math.Sqrt(v.X*v.X + v.Y*v.Y))
}

func (v Vec2) Normalize() Vec2 {
	m := v.Magnitude()
	if m == 0 {
		return Vec2{}
	}
	return v.Times(1.0 / m)
}

func (v Vec2) RightNormal() Vec2 {
	return Vec2{X: v.Y, Y: -v.X}
}

func (v Vec2) Invert() Vec2 {
	return Vec2{X: -v.X, Y: -v.Y}
}

func (v Vec2) DistanceTo(o Vec2) float64 {
	return o.Minus(v).Magnitude()
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}
