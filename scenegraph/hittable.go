// Package scenegraph implements the polymorphic scene graph: primitives,
// compounds, instances, and volumes, all sharing the Hittable capability
// set {intersect, bounding_box}.
package scenegraph

import (
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// RayHit carries everything a material or integrator needs at an
// intersection point.
type RayHit struct {
	T         float64
	Point     geom.Point
	Normal    geom.Vector // always unit length, oriented against the incident ray
	FrontFace bool        // true if the ray hit the outward-facing side
	Material  shading.Material
	U, V      float64
}

// SetFaceNormal orients Normal against the incident ray direction and
// records whether the hit was on the front (outward) face, the convention
// every primitive's Intersect must follow.
func (h *RayHit) SetFaceNormal(r geom.Ray, outwardNormal geom.Vector) {
	h.FrontFace = r.Direction.Dot(outwardNormal) < 0
	if h.FrontFace {
		h.Normal = outwardNormal
	} else {
		h.Normal = outwardNormal.Neg()
	}
}

// ToMaterialHit adapts a RayHit to the shading.Hit view a Material.Scatter
// call needs, keeping shading decoupled from scenegraph (see shading/material.go).
func (h RayHit) ToMaterialHit() shading.Hit {
	return shading.Hit{Point: h.Point, Normal: h.Normal, U: h.U, V: h.V, FrontFace: h.FrontFace}
}

// Hittable is the capability set shared by every scene graph node variant
// primitives, compounds, instances, and volumes.
type Hittable interface {
	// Intersect returns the nearest hit within ray, or false if none.
	// rng supplies randomness for volumes, which sample a stochastic hit
	// distance.
	Intersect(r geom.Ray, ray geom.Interval, rng *rand.Rand) (RayHit, bool)
	BoundingBox() geom.AABB
}
