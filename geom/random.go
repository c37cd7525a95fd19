package geom

import (
	"math"
	"math/rand"
)

// RandomUnitVector samples a vector uniformly distributed on the unit
// sphere via rejection sampling inside the unit cube, the standard approach
// for cosine-weighted and isotropic scatter directions.
func RandomUnitVector(rng *rand.Rand) Vector {
	for {
		v := Vector{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}
		lsq := v.LengthSquared()
		if lsq > 1e-160 && lsq <= 1 {
			return v.Scale(1 / math.Sqrt(lsq))
		}
	}
}

// RandomOnHemisphere samples a unit vector in the hemisphere oriented by n.
func RandomOnHemisphere(rng *rand.Rand, n Vector) Vector {
	v := RandomUnitVector(rng)
	if v.Dot(n) > 0 {
		return v
	}
	return v.Neg()
}

// RandomInUnitDisk samples a point in the unit disk in the XY plane, used
// for defocus-disk sampling.
func RandomInUnitDisk(rng *rand.Rand) Vector {
	for {
		v := Vector{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
		if v.LengthSquared() < 1 {
			return v
		}
	}
}
