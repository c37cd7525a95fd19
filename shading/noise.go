package shading

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
)

// Perlin is a classic gradient-noise generator: a permutation table plus a
// lattice of random unit gradient vectors, trilinearly interpolated with a
// Hermite smoothing curve. It satisfies the NoiseField signature via Sample.
type Perlin struct {
	gradients [pointCount]geom.Vector
	permX     [pointCount]int
	permY     [pointCount]int
	permZ     [pointCount]int
}

const pointCount = 256

// NewPerlin builds a Perlin lattice from rng, so a render's noise pattern is
// reproducible given a seeded source (consistent with the tracer's own
// per-tile RNG seeding in tracer/trace.go).
func NewPerlin(rng *rand.Rand) *Perlin {
	p := &Perlin{}
	for i := range p.gradients {
		p.gradients[i] = geom.RandomUnitVector(rng)
	}
	p.permX = generatePermutation(rng)
	p.permY = generatePermutation(rng)
	p.permZ = generatePermutation(rng)
	return p
}

func generatePermutation(rng *rand.Rand) [pointCount]int {
	var perm [pointCount]int
	for i := range perm {
		perm[i] = i
	}
	for i := len(perm) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// Sample returns a smoothly interpolated noise value, roughly in [-1, 1].
func (p *Perlin) Sample(pt geom.Point) float64 {
	u := pt.X - math.Floor(pt.X)
	v := pt.Y - math.Floor(pt.Y)
	w := pt.Z - math.Floor(pt.Z)

	i := int(math.Floor(pt.X))
	j := int(math.Floor(pt.Y))
	k := int(math.Floor(pt.Z))

	var c [2][2][2]geom.Vector
	for di := 0; di < 2; di++ {
		for dj := 0; dj < 2; dj++ {
			for dk := 0; dk < 2; dk++ {
				idx := p.permX[(i+di)&255] ^ p.permY[(j+dj)&255] ^ p.permZ[(k+dk)&255]
				c[di][dj][dk] = p.gradients[idx]
			}
		}
	}
	return perlinInterp(c, u, v, w)
}

// Turbulence sums several octaves of Sample at doubling frequency and
// halving amplitude, the usual construction for a marbled/cloud look.
func (p *Perlin) Turbulence(pt geom.Point, depth int) float64 {
	accum := 0.0
	weight := 1.0
	point := pt
	for i := 0; i < depth; i++ {
		accum += weight * p.Sample(point)
		weight *= 0.5
		point = point.Scale(2)
	}
	return math.Abs(accum)
}

func perlinInterp(c [2][2][2]geom.Vector, u, v, w float64) float64 {
	// Hermite smoothing avoids the grid-aligned discontinuities a linear
	// interpolant would show at lattice boundaries.
	uu := u * u * (3 - 2*u)
	vv := v * v * (3 - 2*v)
	ww := w * w * (3 - 2*w)

	accum := 0.0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				weight := geom.Vector{X: u - float64(i), Y: v - float64(j), Z: w - float64(k)}
				fi, fj, fk := float64(i), float64(j), float64(k)
				accum += (fi*uu + (1-fi)*(1-uu)) *
					(fj*vv + (1-fj)*(1-vv)) *
					(fk*ww + (1-fk)*(1-ww)) *
					c[i][j][k].Dot(weight)
			}
		}
	}
	return accum
}
