package scenegraph

import (
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
)

// List is a compound that linearly scans its children, caching the union
// AABB of all of them.
type List struct {
	Children []Hittable
	box      geom.AABB
}

// NewList builds a List and precomputes its bounding box.
func NewList(children ...Hittable) *List {
	l := &List{Children: children, box: geom.EmptyAABB}
	for _, c := range children {
		l.box = geom.Union(l.box, c.BoundingBox())
	}
	return l
}

func (l *List) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	var closest RayHit
	hitAnything := false
	closestSoFar := ray.Max

	for _, child := range l.Children {
		if hit, ok := child.Intersect(r, geom.Interval{Min: ray.Min, Max: closestSoFar}, rng); ok {
			hitAnything = true
			closestSoFar = hit.T
			closest = hit
		}
	}
	return closest, hitAnything
}

func (l *List) BoundingBox() geom.AABB { return l.box }
