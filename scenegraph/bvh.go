package scenegraph

import (
	"math"
	"math/rand"
	"sort"

	"github.com/paulwrubel/luxide/geom"
)

// BVH is a binary bounding-volume hierarchy built by recursive median split
// on the axis of widest centroid spread.
type BVH struct {
	left, right Hittable
	box         geom.AABB
	leaf        Hittable // never set: NewBVH returns a single primitive as is
}

// NewBVH builds a tree from a non-empty slice of geometries. A list of
// length 1 is returned as that geometry itself, with no BVH node, so a BVH built
// from a single primitive behaves identically to that primitive.
func NewBVH(objects []Hittable) Hittable {
	if len(objects) == 0 {
		panic("scenegraph: NewBVH requires at least one object")
	}
	if len(objects) == 1 {
		return objects[0]
	}

	// Copy so sorting here never mutates the caller's slice.
	items := make([]Hittable, len(objects))
	copy(items, objects)

	bounds := geom.EmptyAABB
	for _, o := range items {
		bounds = geom.Union(bounds, o.BoundingBox())
	}
	axis := centroidSpreadAxis(items)

	sort.Slice(items, func(i, j int) bool {
		return centroidComponent(items[i].BoundingBox(), axis) < centroidComponent(items[j].BoundingBox(), axis)
	})

	mid := len(items) / 2
	left := NewBVH(items[:mid])
	right := NewBVH(items[mid:])

	return &BVH{left: left, right: right, box: bounds}
}

// centroidSpreadAxis computes, for each of the three axes, the spread of
// centroid sums and returns the axis of maximum spread.
func centroidSpreadAxis(objects []Hittable) int {
	var min, max [3]float64
	for i := 0; i < 3; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}
	for _, o := range objects {
		box := o.BoundingBox()
		for axis := 0; axis < 3; axis++ {
			c := centroidComponent(box, axis)
			if c < min[axis] {
				min[axis] = c
			}
			if c > max[axis] {
				max[axis] = c
			}
		}
	}

	bestAxis, bestSpread := 0, -1.0
	for axis := 0; axis < 3; axis++ {
		spread := max[axis] - min[axis]
		if spread > bestSpread {
			bestSpread = spread
			bestAxis = axis
		}
	}
	return bestAxis
}

func centroidComponent(box geom.AABB, axis int) float64 {
	iv := box.Axis(axis)
	return iv.Min + iv.Max
}

func (b *BVH) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	if !b.box.Hit(r, ray) {
		return RayHit{}, false
	}

	// Intersect the near (left) subtree first; if it hits at t_L, tighten
	// the right-hand interval to [t_min, t_L] so the surviving hit wins
	// without scanning both subtrees at full width.
	leftHit, leftOK := b.left.Intersect(r, ray, rng)
	searchMax := ray.Max
	if leftOK {
		searchMax = leftHit.T
	}
	rightHit, rightOK := b.right.Intersect(r, geom.Interval{Min: ray.Min, Max: searchMax}, rng)

	if rightOK {
		return rightHit, true
	}
	return leftHit, leftOK
}

func (b *BVH) BoundingBox() geom.AABB { return b.box }
