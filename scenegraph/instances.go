package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
)

// Translate wraps a child, transforming incoming rays into the child's
// local space and outgoing hits back into world space.
type Translate struct {
	Child  Hittable
	Offset geom.Vector
	box    geom.AABB
}

func NewTranslate(child Hittable, offset geom.Vector) *Translate {
	childBox := child.BoundingBox()
	return &Translate{
		Child:  child,
		Offset: offset,
		box:    geom.NewAABB(childBox.Corners()[0].Add(offset), childBox.Corners()[7].Add(offset)),
	}
}

func (t *Translate) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	localRay := geom.Ray{Origin: r.Origin.Sub(t.Offset), Direction: r.Direction, Time: r.Time}
	hit, ok := t.Child.Intersect(localRay, ray, rng)
	if !ok {
		return RayHit{}, false
	}
	hit.Point = hit.Point.Add(t.Offset)
	return hit, true
}

func (t *Translate) BoundingBox() geom.AABB { return t.box }

// rotate's axis is 0=X, 1=Y, 2=Z. The rotation is about pivot, not the world
// origin: every transform is conjugated by the pivot translation.
type rotate struct {
	child    Hittable
	axis     int
	pivot    geom.Point
	sinTheta float64
	cosTheta float64
	box      geom.AABB
}

func newRotate(child Hittable, axis int, angleRadians float64, pivot geom.Point) *rotate {
	sin, cos := math.Sin(angleRadians), math.Cos(angleRadians)
	childBox := child.BoundingBox()

	min := geom.Point{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := geom.Point{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}

	for _, corner := range childBox.Corners() {
		rotated := rotatePoint(corner.Sub(pivot), axis, sin, cos).Add(pivot)
		min = geom.Point{X: minF(min.X, rotated.X), Y: minF(min.Y, rotated.Y), Z: minF(min.Z, rotated.Z)}
		max = geom.Point{X: maxF(max.X, rotated.X), Y: maxF(max.Y, rotated.Y), Z: maxF(max.Z, rotated.Z)}
	}

	return &rotate{child: child, axis: axis, pivot: pivot, sinTheta: sin, cosTheta: cos, box: geom.NewAABB(min, max)}
}

func rotatePoint(p geom.Point, axis int, sin, cos float64) geom.Point {
	switch axis {
	case 0: // X
		return geom.Point{X: p.X, Y: cos*p.Y - sin*p.Z, Z: sin*p.Y + cos*p.Z}
	case 1: // Y
		return geom.Point{X: cos*p.X + sin*p.Z, Y: p.Y, Z: -sin*p.X + cos*p.Z}
	default: // Z
		return geom.Point{X: cos*p.X - sin*p.Y, Y: sin*p.X + cos*p.Y, Z: p.Z}
	}
}

func rotatePointInverse(p geom.Point, axis int, sin, cos float64) geom.Point {
	return rotatePoint(p, axis, -sin, cos)
}

func (r *rotate) Intersect(ray geom.Ray, interval geom.Interval, rng *rand.Rand) (RayHit, bool) {
	localOrigin := rotatePointInverse(ray.Origin.Sub(r.pivot), r.axis, r.sinTheta, r.cosTheta).Add(r.pivot)
	localDir := rotatePointInverse(ray.Direction, r.axis, r.sinTheta, r.cosTheta)
	localRay := geom.Ray{Origin: localOrigin, Direction: localDir, Time: ray.Time}

	hit, ok := r.child.Intersect(localRay, interval, rng)
	if !ok {
		return RayHit{}, false
	}
	hit.Point = rotatePoint(hit.Point.Sub(r.pivot), r.axis, r.sinTheta, r.cosTheta).Add(r.pivot)
	hit.Normal = rotatePoint(hit.Normal, r.axis, r.sinTheta, r.cosTheta)
	return hit, true
}

func (r *rotate) BoundingBox() geom.AABB { return r.box }

// RotateX rotates its child around an X-parallel axis through pivot.
type RotateX struct{ *rotate }

func NewRotateX(child Hittable, angleRadians float64, pivot geom.Point) *RotateX {
	return &RotateX{rotate: newRotate(child, 0, angleRadians, pivot)}
}

// RotateY rotates its child around a Y-parallel axis through pivot.
type RotateY struct{ *rotate }

func NewRotateY(child Hittable, angleRadians float64, pivot geom.Point) *RotateY {
	return &RotateY{rotate: newRotate(child, 1, angleRadians, pivot)}
}

// RotateZ rotates its child around a Z-parallel axis through pivot.
type RotateZ struct{ *rotate }

func NewRotateZ(child Hittable, angleRadians float64, pivot geom.Point) *RotateZ {
	return &RotateZ{rotate: newRotate(child, 2, angleRadians, pivot)}
}

// ReverseNormals wraps a child and flips its surface normal at every hit,
// useful for fixing inward-facing normals on an imported mesh.
type ReverseNormals struct {
	Child Hittable
}

func (r ReverseNormals) Intersect(ray geom.Ray, interval geom.Interval, rng *rand.Rand) (RayHit, bool) {
	hit, ok := r.Child.Intersect(ray, interval, rng)
	if !ok {
		return RayHit{}, false
	}
	hit.Normal = hit.Normal.Neg()
	hit.FrontFace = !hit.FrontFace
	return hit, true
}

func (r ReverseNormals) BoundingBox() geom.AABB { return r.Child.BoundingBox() }
