package geom

import "math"

// Ray is a parametric ray origin + t*direction, carrying a scalar Time in
// [0,1] used by motion-blurred primitives.
type Ray struct {
	Origin    Point
	Direction Vector
	Time      float64
}

// At evaluates the ray at parameter t.
func (r Ray) At(t float64) Point {
	return r.Origin.Add(r.Direction.Scale(t))
}

// Interval is a scalar range, tested as closed by Contains and as open by
// Surrounds, used both
// for the ray's valid t-range during traversal and for AABB axis extents.
type Interval struct {
	Min, Max float64
}

// Universe is the interval containing every real number.
var Universe = Interval{Min: math.Inf(-1), Max: math.Inf(1)}

// Empty is an interval containing no values (Min > Max).
var Empty = Interval{Min: math.Inf(1), Max: math.Inf(-1)}

func (iv Interval) Size() float64 { return iv.Max - iv.Min }

// Contains reports whether x lies in the closed interval [Min, Max].
func (iv Interval) Contains(x float64) bool { return iv.Min <= x && x <= iv.Max }

// Surrounds reports whether x lies in the open interval (Min, Max), which is
// the test used to reject self-intersections at a hit's own t value.
func (iv Interval) Surrounds(x float64) bool { return iv.Min < x && x < iv.Max }

func (iv Interval) Clamp(x float64) float64 {
	if x < iv.Min {
		return iv.Min
	}
	if x > iv.Max {
		return iv.Max
	}
	return x
}
