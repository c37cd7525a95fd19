package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// ConstantDensity wraps a boundary geometry and scatters rays at a
// stochastic distance sampled from an exponential law against the
// boundary's slab.
type ConstantDensity struct {
	Boundary Hittable
	Density  float64
	Phase    shading.Material // an Isotropic material, kept generic here
}

func NewConstantDensity(boundary Hittable, density float64, texture shading.Texture) *ConstantDensity {
	return &ConstantDensity{Boundary: boundary, Density: density, Phase: shading.Isotropic{Texture: texture}}
}

func (c *ConstantDensity) Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool) {
	// Find the first two boundary hits t1 <= t2 along the infinite ray,
	// treating the boundary as thin.
	hit1, ok1 := c.Boundary.Intersect(r, geom.Universe, rng)
	if !ok1 {
		return RayHit{}, false
	}
	hit2, ok2 := c.Boundary.Intersect(r, geom.Interval{Min: hit1.T + 0.0001, Max: math.Inf(1)}, rng)
	if !ok2 {
		return RayHit{}, false
	}

	t1, t2 := hit1.T, hit2.T
	if t1 < ray.Min {
		t1 = ray.Min
	}
	if t2 > ray.Max {
		t2 = ray.Max
	}
	if t1 >= t2 {
		return RayHit{}, false
	}
	if t1 < 0 {
		t1 = 0
	}

	rayLength := r.Direction.Length()
	distanceInsideBoundary := (t2 - t1) * rayLength

	// d = -ln(U)/sigma, U ~ Uniform(0,1).
	hitDistance := -(1 / c.Density) * math.Log(rng.Float64())
	if hitDistance > distanceInsideBoundary {
		return RayHit{}, false
	}

	t := t1 + hitDistance/rayLength
	return RayHit{
		T:         t,
		Point:     r.At(t),
		Normal:    geom.Vector{X: 1}, // arbitrary: isotropic scatter ignores it
		FrontFace: true,
		Material:  c.Phase,
		U:         0,
		V:         0,
	}, true
}

func (c *ConstantDensity) BoundingBox() geom.AABB { return c.Boundary.BoundingBox() }
