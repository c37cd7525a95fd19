package tracer

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/scenegraph"
	"github.com/paulwrubel/luxide/shading"
)

// traceInterval excludes t values too close to a hit's own origin, avoiding
// self-intersection from floating-point error on the reflected/refracted
// ray.
var traceInterval = geom.Interval{Min: 0.001, Max: math.Inf(1)}

// integrate recursively evaluates the rendering equation along ray:
// L = emittance + reflectance ⊙ L(scattered), terminating at a miss, an
// absorbing scatter, or remainingBounces reaching zero.
func integrate(rng *rand.Rand, ray geom.Ray, scene *scenegraph.Scene, remainingBounces int) shading.Color {
	if remainingBounces <= 0 {
		return shading.Black
	}

	hit, ok := scene.Root.Intersect(ray, traceInterval, rng)
	if !ok {
		return scene.Background
	}

	emitted := hit.Material.Emittance(hit.U, hit.V, hit.Point)
	scattered, didScatter := hit.Material.Scatter(rng, ray, hit.ToMaterialHit())
	if !didScatter {
		return emitted
	}

	attenuation := hit.Material.Reflectance(hit.U, hit.V, hit.Point)
	return emitted.Add(attenuation.Mul(integrate(rng, scattered, scene, remainingBounces-1)))
}
