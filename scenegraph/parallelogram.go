package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// Parallelogram is a planar quad defined by a corner Q and two edge vectors
// U, V.
type Parallelogram struct {
	Q, U, V  geom.Vector
	Material shading.Material
	IsCulled bool

	normal geom.Vector
	d      float64
	w      geom.Vector // basis vector for the (alpha,beta) projection
	area   geom.Vector // cached U x V, reused for normal/area
}

// NewParallelogram precomputes the plane equation and projection basis once
// at load time rather than per query.
func NewParallelogram(q, u, v geom.Vector, mat shading.Material, isCulled bool) *Parallelogram {
	n := u.Cross(v)
	unitNormal := n.Unit()
	return &Parallelogram{
		Q: q, U: u, V: v, Material: mat, IsCulled: isCulled,
		normal: unitNormal,
		d:      unitNormal.Dot(q),
		w:      n.Scale(1 / n.LengthSquared()),
		area:   n,
	}
}

func (p *Parallelogram) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	denom := p.normal.Dot(r.Direction)

	// Edge-on rays (denom ~ 0) are parallel to the plane: reject rather
	// than propagate a near-infinite t.
	if math.Abs(denom) < 1e-8 {
		return RayHit{}, false
	}
	if p.IsCulled && denom > 0 {
		return RayHit{}, false
	}

	t := (p.d - p.normal.Dot(r.Origin)) / denom
	if !ray.Contains(t) {
		return RayHit{}, false
	}

	intersection := r.At(t)
	planarHitVec := intersection.Sub(p.Q)
	alpha := p.w.Dot(planarHitVec.Cross(p.V))
	beta := p.w.Dot(p.U.Cross(planarHitVec))

	unit := geom.Interval{Min: 0, Max: 1}
	if !unit.Contains(alpha) || !unit.Contains(beta) {
		return RayHit{}, false
	}

	hit := RayHit{T: t, Point: intersection, Material: p.Material, U: alpha, V: beta}
	hit.SetFaceNormal(r, p.normal)
	return hit, true
}

func (p *Parallelogram) BoundingBox() geom.AABB {
	diag1 := geom.NewAABB(p.Q, p.Q.Add(p.U).Add(p.V))
	diag2 := geom.NewAABB(p.Q.Add(p.U), p.Q.Add(p.V))
	return geom.Union(diag1, diag2)
}
