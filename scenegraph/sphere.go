package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// Sphere is static when Moving is false (CenterEnd is then ignored);
// otherwise its center is linearly interpolated between Center and
// CenterEnd by ray.Time.
type Sphere struct {
	Center   geom.Point
	Radius   float64
	Material shading.Material

	Moving    bool
	CenterEnd geom.Point
}

func (s Sphere) centerAt(time float64) geom.Point {
	if !s.Moving {
		return s.Center
	}
	return geom.Lerp(s.Center, s.CenterEnd, time)
}

// Intersect solves the standard sphere quadratic.
func (s Sphere) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	center := s.centerAt(r.Time)
	oc := center.Sub(r.Origin)
	a := r.Direction.LengthSquared()
	h := r.Direction.Dot(oc)
	c := oc.LengthSquared() - s.Radius*s.Radius

	discriminant := h*h - a*c
	if discriminant < 0 {
		return RayHit{}, false
	}
	sqrtD := math.Sqrt(discriminant)

	root := (h - sqrtD) / a
	if !ray.Surrounds(root) {
		root = (h + sqrtD) / a
		if !ray.Surrounds(root) {
			return RayHit{}, false
		}
	}

	hit := RayHit{T: root, Material: s.Material}
	hit.Point = r.At(root)
	outwardNormal := hit.Point.Sub(center).Scale(1 / s.Radius)
	hit.SetFaceNormal(r, outwardNormal)
	hit.U, hit.V = sphereUV(outwardNormal)
	return hit, true
}

// sphereUV maps a point on the unit sphere to spherical (u,v), per
// u = (atan2(-z,x)+pi)/(2pi), v = acos(-y)/pi.
func sphereUV(p geom.Vector) (u, v float64) {
	theta := math.Acos(-p.Y)
	phi := math.Atan2(-p.Z, p.X) + math.Pi
	return phi / (2 * math.Pi), theta / math.Pi
}

func (s Sphere) BoundingBox() geom.AABB {
	radiusVec := geom.Vector{X: s.Radius, Y: s.Radius, Z: s.Radius}
	box := geom.NewAABB(s.Center.Sub(radiusVec), s.Center.Add(radiusVec))
	if !s.Moving {
		return box
	}
	endBox := geom.NewAABB(s.CenterEnd.Sub(radiusVec), s.CenterEnd.Add(radiusVec))
	return geom.Union(box, endBox)
}
