package shading

import (
	"image"
	"math"

	"github.com/paulwrubel/luxide/geom"
)

// Texture is the capability set {value(u, v, p) -> Color}.
type Texture interface {
	Value(u, v float64, p geom.Point) Color
}

// SolidColor always returns the same color, regardless of surface position.
type SolidColor struct {
	Color Color
}

func (t SolidColor) Value(u, v float64, p geom.Point) Color { return t.Color }

// Checker divides the surface point into cells of size Scale on each
// axis; the parity of the summed cell indices selects Even or Odd.
type Checker struct {
	Scale float64
	Even  Texture
	Odd   Texture
}

func (t Checker) Value(u, v float64, p geom.Point) Color {
	inv := 1.0
	if t.Scale != 0 {
		inv = 1.0 / t.Scale
	}
	xi := int(math.Floor(p.X * inv))
	yi := int(math.Floor(p.Y * inv))
	zi := int(math.Floor(p.Z * inv))
	if (xi+yi+zi)%2 == 0 {
		return t.Even.Value(u, v, p)
	}
	return t.Odd.Value(u, v, p)
}

// Image samples a decoded raster image with gamma pre-applied; callers hand
// Image an already-decoded image.Image.
type Image struct {
	Img image.Image
}

func (t Image) Value(u, v float64, p geom.Point) Color {
	bounds := t.Img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Color{R: 0, G: 1, B: 1} // debug cyan, mirrors a missing-texture convention
	}

	u = geom.Interval{Min: 0, Max: 1}.Clamp(u)
	v = 1 - geom.Interval{Min: 0, Max: 1}.Clamp(v) // image row 0 is the top of the texture

	i := int(u * float64(w))
	j := int(v * float64(h))
	if i >= w {
		i = w - 1
	}
	if j >= h {
		j = h - 1
	}

	r, g, b, _ := t.Img.At(bounds.Min.X+i, bounds.Min.Y+j).RGBA()
	const maxChan = 65535.0
	// Gamma is already baked into the source asset; undo the display-space
	// encoding here so shading math operates in linear space throughout.
	return Color{
		R: math.Pow(float64(r)/maxChan, 2.2),
		G: math.Pow(float64(g)/maxChan, 2.2),
		B: math.Pow(float64(b)/maxChan, 2.2),
	}
}

// NoiseField is an arbitrary 3-in/1-out scalar field, letting Noise wrap
// hand-written or library-provided noise functions uniformly.
type NoiseField func(p geom.Point) float64

// Noise samples a scalar field with optional input and output remapping.
type Noise struct {
	Field  NoiseField
	Albedo Color

	// InputScale multiplies p before sampling Field (identity if zero).
	InputScale float64
	// OutputMap remaps the raw field value before multiplying Albedo
	// (identity if nil); e.g. a turbulence-style 0.5*(1+sin(...)) wrapper.
	OutputMap func(raw float64) float64
}

func (t Noise) Value(u, v float64, p geom.Point) Color {
	scale := t.InputScale
	if scale == 0 {
		scale = 1
	}
	raw := t.Field(p.Scale(scale))
	if t.OutputMap != nil {
		raw = t.OutputMap(raw)
	}
	return t.Albedo.Scale(raw)
}

// TurbulenceOutputMap is the canonical Noise.OutputMap used for a marbled
// look: remaps a raw [-1,1] noise sample into [0,1] via a phase-shifted
// sine, the standard "turbulence" texture recipe.
func TurbulenceOutputMap(phase float64) func(float64) float64 {
	return func(raw float64) float64 {
		return 0.5 * (1 + math.Sin(phase+raw))
	}
}
