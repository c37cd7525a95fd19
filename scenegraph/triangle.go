package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// Triangle uses the Moller-Trumbore algorithm. NormalA/B/C
// are optional per-vertex normals, used only when HasVertexNormals is
// true; otherwise the triangle is flat-shaded with its plane normal.
type Triangle struct {
	A, B, C                   geom.Point
	NormalA, NormalB, NormalC geom.Vector
	HasVertexNormals          bool
	Material                  shading.Material
	IsCulled                  bool
}

// NewFlatTriangle builds a triangle with no per-vertex normal data; its
// plane normal (A,B,C in counter-clockwise winding) is used at every point.
func NewFlatTriangle(a, b, c geom.Point, mat shading.Material, isCulled bool) *Triangle {
	return &Triangle{A: a, B: b, C: c, Material: mat, IsCulled: isCulled}
}

func (t *Triangle) planeNormal() geom.Vector {
	return t.B.Sub(t.A).Cross(t.C.Sub(t.A)).Unit()
}

func (t *Triangle) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	const epsilon = 1e-8

	edge1 := t.B.Sub(t.A)
	edge2 := t.C.Sub(t.A)
	rayCrossEdge2 := r.Direction.Cross(edge2)
	det := edge1.Dot(rayCrossEdge2)

	if t.IsCulled {
		if det < epsilon {
			return RayHit{}, false
		}
	} else if math.Abs(det) < epsilon {
		return RayHit{}, false
	}

	invDet := 1.0 / det
	s := r.Origin.Sub(t.A)
	u := invDet * s.Dot(rayCrossEdge2)
	if u < 0 || u > 1 {
		return RayHit{}, false
	}

	sCrossEdge1 := s.Cross(edge1)
	v := invDet * r.Direction.Dot(sCrossEdge1)
	if v < 0 || u+v > 1 {
		return RayHit{}, false
	}

	dist := invDet * edge2.Dot(sCrossEdge1)
	if !ray.Surrounds(dist) {
		return RayHit{}, false
	}

	w := 1 - u - v
	var outwardNormal geom.Vector
	if t.HasVertexNormals {
		outwardNormal = t.NormalA.Scale(w).Add(t.NormalB.Scale(u)).Add(t.NormalC.Scale(v)).Unit()
	} else {
		outwardNormal = t.planeNormal()
	}

	hit := RayHit{T: dist, Point: r.At(dist), Material: t.Material, U: u, V: v}
	hit.SetFaceNormal(r, outwardNormal)
	return hit, true
}

func (t *Triangle) BoundingBox() geom.AABB {
	return geom.FromPoints(t.A, t.B, t.C)
}
