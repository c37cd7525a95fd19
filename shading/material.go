package shading

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
)

// Hit is the minimal surface-hit view a material needs: the information
// RayHit in scenegraph carries, duplicated here (rather than imported) so
// shading has no dependency on scenegraph. scenegraph depends on shading,
// not the other way around.
type Hit struct {
	Point     geom.Point
	Normal    geom.Vector // always unit length, oriented against the incident ray
	U, V      float64
	FrontFace bool
}

// Material is the capability set:
// {reflectance(u,v,p), emittance(u,v,p), scatter(ray, hit) -> optional scattered ray}.
type Material interface {
	Reflectance(u, v float64, p geom.Point) Color
	Emittance(u, v float64, p geom.Point) Color
	// Scatter returns the scattered ray and true, or an arbitrary ray and
	// false if the material absorbs the ray.
	Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool)
}

// nonEmitter is embedded by every material that never emits light, so each
// variant only has to implement Emittance once.
type nonEmitter struct{}

func (nonEmitter) Emittance(u, v float64, p geom.Point) Color { return Black }

// Lambertian is a cosine-weighted diffuse material.
type Lambertian struct {
	nonEmitter
	Texture Texture
}

func (m Lambertian) Reflectance(u, v float64, p geom.Point) Color {
	return m.Texture.Value(u, v, p)
}

func (m Lambertian) Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool) {
	dir := h.Normal.Add(geom.RandomUnitVector(rng))
	if dir.NearZero() {
		dir = h.Normal
	}
	return geom.Ray{Origin: h.Point, Direction: dir, Time: in.Time}, true
}

// Specular is a mirror material perturbed by Roughness in [0,1]; it absorbs
// rays that would scatter below the surface.
type Specular struct {
	nonEmitter
	Texture   Texture
	Roughness float64
}

func (m Specular) Reflectance(u, v float64, p geom.Point) Color {
	return m.Texture.Value(u, v, p)
}

func (m Specular) Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool) {
	reflected := in.Direction.Unit().Reflect(h.Normal)
	if m.Roughness > 0 {
		reflected = reflected.Add(geom.RandomUnitVector(rng).Scale(m.Roughness)).Unit()
	}
	scattered := geom.Ray{Origin: h.Point, Direction: reflected, Time: in.Time}
	if scattered.Direction.Dot(h.Normal) <= 0 {
		return scattered, false // absorbed: scattered below the surface
	}
	return scattered, true
}

// Dielectric refracts via Snell's law with a Schlick Fresnel coin-flip
// deciding between reflection and transmission.
type Dielectric struct {
	nonEmitter
	RefractionIndex float64
}

func (m Dielectric) Reflectance(u, v float64, p geom.Point) Color { return White }

func (m Dielectric) Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool) {
	ri := m.RefractionIndex
	if h.FrontFace {
		ri = 1.0 / ri
	}

	unitDir := in.Direction.Unit()
	cosTheta := math.Min(unitDir.Neg().Dot(h.Normal), 1.0)
	sinTheta := math.Sqrt(1.0 - cosTheta*cosTheta)

	cannotRefract := ri*sinTheta > 1.0

	var direction geom.Vector
	if cannotRefract || schlickReflectance(cosTheta, ri) > rng.Float64() {
		direction = unitDir.Reflect(h.Normal)
	} else {
		direction = geom.Refract(unitDir, h.Normal, ri)
	}

	return geom.Ray{Origin: h.Point, Direction: direction, Time: in.Time}, true
}

// schlickReflectance is Schlick's approximation to the Fresnel reflectance.
func schlickReflectance(cosine, refractionIndex float64) float64 {
	r0 := (1 - refractionIndex) / (1 + refractionIndex)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}

// Isotropic scatters uniformly in all directions; used inside volumes.
type Isotropic struct {
	nonEmitter
	Texture Texture
}

func (m Isotropic) Reflectance(u, v float64, p geom.Point) Color {
	return m.Texture.Value(u, v, p)
}

func (m Isotropic) Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool) {
	return geom.Ray{Origin: h.Point, Direction: geom.RandomUnitVector(rng), Time: in.Time}, true
}

// Light is a pure emitter with no scattering, used for area/point light
// surfaces. It never scatters: a material that both emits and scatters
// would double-count energy in a naive path tracer.
type Light struct {
	Texture Texture
}

func (m Light) Reflectance(u, v float64, p geom.Point) Color { return Black }
func (m Light) Emittance(u, v float64, p geom.Point) Color {
	return m.Texture.Value(u, v, p)
}
func (m Light) Scatter(rng *rand.Rand, in geom.Ray, h Hit) (geom.Ray, bool) {
	return geom.Ray{}, false
}
