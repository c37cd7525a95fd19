package geom

import "math"

// padEpsilon is the minimum extent enforced on every axis of an AABB so
// degenerate boxes (an axis-aligned parallelogram, a zero-thickness AABox
// face) remain numerically stable under the slab test.
const padEpsilon = 1e-4

// AABB is an axis-aligned bounding box: three per-axis intervals. A box
// whose interval is Empty on any axis is itself considered empty.
type AABB struct {
	X, Y, Z Interval
}

// EmptyAABB is the additive identity for Union: unioning it with any box
// returns that box unchanged.
var EmptyAABB = AABB{X: Empty, Y: Empty, Z: Empty}

// NewAABB builds a box from two opposite corners, ordering each axis's
// interval regardless of which corner is min/max, then pads degenerate axes.
func NewAABB(a, b Point) AABB {
	box := AABB{
		X: orderedInterval(a.X, b.X),
		Y: orderedInterval(a.Y, b.Y),
		Z: orderedInterval(a.Z, b.Z),
	}
	return box.padded()
}

func orderedInterval(a, b float64) Interval {
	if a <= b {
		return Interval{Min: a, Max: b}
	}
	return Interval{Min: b, Max: a}
}

// padded widens any axis narrower than padEpsilon, centered on its midpoint.
func (b AABB) padded() AABB {
	pad := func(iv Interval) Interval {
		if iv.Size() >= padEpsilon {
			return iv
		}
		half := padEpsilon / 2
		return Interval{Min: iv.Min - half, Max: iv.Max + half}
	}
	return AABB{X: pad(b.X), Y: pad(b.Y), Z: pad(b.Z)}
}

// Axis returns the interval for axis 0=X, 1=Y, 2=Z.
func (b AABB) Axis(n int) Interval {
	switch n {
	case 0:
		return b.X
	case 1:
		return b.Y
	default:
		return b.Z
	}
}

// LongestAxis returns the index (0,1,2) of the axis with the widest extent,
// used by BVH construction to pick the split axis.
func (b AABB) LongestAxis() int {
	xs, ys, zs := b.X.Size(), b.Y.Size(), b.Z.Size()
	if xs > ys && xs > zs {
		return 0
	}
	if ys > zs {
		return 1
	}
	return 2
}

// Union returns the smallest box containing both a and b.
func Union(a, b AABB) AABB {
	return AABB{
		X: unionInterval(a.X, b.X),
		Y: unionInterval(a.Y, b.Y),
		Z: unionInterval(a.Z, b.Z),
	}
}

func unionInterval(a, b Interval) Interval {
	return Interval{Min: math.Min(a.Min, b.Min), Max: math.Max(a.Max, b.Max)}
}

// Hit runs the slab test: for each axis, intersect the ray against the two
// bounding planes using the sign-aware 1/direction swap, tightening ray as
// it goes. Ties (interval inverts to Max <= Min) reject.
func (b AABB) Hit(r Ray, ray Interval) bool {
	for axis := 0; axis < 3; axis++ {
		iv := b.Axis(axis)
		origin, dir := component(r.Origin, axis), component(r.Direction, axis)

		invD := 1.0 / dir
		t0 := (iv.Min - origin) * invD
		t1 := (iv.Max - origin) * invD
		if invD < 0 {
			t0, t1 = t1, t0
		}
		if t0 > ray.Min {
			ray.Min = t0
		}
		if t1 < ray.Max {
			ray.Max = t1
		}
		if ray.Max <= ray.Min {
			return false
		}
	}
	return true
}

func component(v Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Corners returns the 8 corners of the box, used by instance wrappers to
// recompute a child's bounding box after a world-space transform.
func (b AABB) Corners() [8]Point {
	var c [8]Point
	i := 0
	for _, x := range [2]float64{b.X.Min, b.X.Max} {
		for _, y := range [2]float64{b.Y.Min, b.Y.Max} {
			for _, z := range [2]float64{b.Z.Min, b.Z.Max} {
				c[i] = Point{X: x, Y: y, Z: z}
				i++
			}
		}
	}
	return c
}

// FromPoints returns the smallest AABB (padded) containing every point.
func FromPoints(pts ...Point) AABB {
	if len(pts) == 0 {
		return EmptyAABB
	}
	min, max := pts[0], pts[0]
	for _, p := range pts[1:] {
		min = Vector{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = Vector{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	return NewAABB(min, max)
}
