// Package shading implements Color, the Texture and Material capability
// sets, and their concrete variants.
package shading

import (
	"image/color"
	"math"
)

// Color is a linear-space RGB triple in [0, +inf). A path tracer
// accumulates unbounded radiance before tone mapping, so Color stays
// float64 until the final 8-bit PNG encode.
type Color struct {
	R, G, B float64
}

var (
	Black = Color{}
	White = Color{R: 1, G: 1, B: 1}
)

func (c Color) Add(o Color) Color { return Color{c.R + o.R, c.G + o.G, c.B + o.B} }
func (c Color) Scale(s float64) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Mul is component-wise multiplication, used to attenuate radiance by a
// material's reflectance against an incoming scattered radiance.
func (c Color) Mul(o Color) Color { return Color{c.R * o.R, c.G * o.G, c.B * o.B} }

// Lerp blends two colors by t in [0,1].
func (c Color) Lerp(o Color, t float64) Color {
	return c.Scale(1 - t).Add(o.Scale(t))
}

// GammaCorrected applies display gamma encoding, raising each channel to
// the exponent 1/gamma.
func (c Color) GammaCorrected(gamma float64) Color {
	inv := 1 / gamma
	return Color{powNonNeg(c.R, inv), powNonNeg(c.G, inv), powNonNeg(c.B, inv)}
}

// GammaExpanded undoes a gamma-corrected encoding, raising each channel to
// the exponent gamma to return it to linear space.
func (c Color) GammaExpanded(gamma float64) Color {
	return Color{powNonNeg(c.R, gamma), powNonNeg(c.G, gamma), powNonNeg(c.B, gamma)}
}

func powNonNeg(x, exp float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x, exp)
}

// scaleDown uniformly rescales an over-bright color so its brightest
// channel lands at limit, preserving hue over luminance.
func (c Color) scaleDown(limit float64) Color {
	if m := math.Max(c.R, math.Max(c.G, c.B)); m > limit {
		return c.Scale(limit / m)
	}
	return c
}

// ToNRGBA converts to an 8-bit display color, gamma-correcting each channel
// by 1/gamma. When truncate is true (the use_scaling_truncation parameter),
// an over-bright pixel is first uniformly rescaled so its brightest channel
// lands at 1.0; when false, out-of-range channels are clamped directly.
func (c Color) ToNRGBA(gamma float64, truncate bool) color.NRGBA {
	if truncate {
		c = c.scaleDown(1)
	}
	c = c.GammaCorrected(gamma)
	return color.NRGBA{
		R: to8(c.R),
		G: to8(c.G),
		B: to8(c.B),
		A: 255,
	}
}

func to8(x float64) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x*255 + 0.5)
}
