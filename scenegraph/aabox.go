package scenegraph

import (
	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

// AxisAlignedBox is a compound of six parallelograms forming a box between
// two opposite corners.
type AxisAlignedBox struct {
	*List
}

// NewAxisAlignedBox builds the six faces between corners a and b.
func NewAxisAlignedBox(a, b geom.Point, mat shading.Material) *AxisAlignedBox {
	min := geom.Point{X: minF(a.X, b.X), Y: minF(a.Y, b.Y), Z: minF(a.Z, b.Z)}
	max := geom.Point{X: maxF(a.X, b.X), Y: maxF(a.Y, b.Y), Z: maxF(a.Z, b.Z)}

	dx := geom.Vector{X: max.X - min.X}
	dy := geom.Vector{Y: max.Y - min.Y}
	dz := geom.Vector{Z: max.Z - min.Z}

	faces := []Hittable{
		NewParallelogram(geom.Point{X: min.X, Y: min.Y, Z: max.Z}, dx, dy, mat, false), // front
		NewParallelogram(geom.Point{X: max.X, Y: min.Y, Z: max.Z}, dz.Neg(), dy, mat, false), // right
		NewParallelogram(geom.Point{X: max.X, Y: min.Y, Z: min.Z}, dx.Neg(), dy, mat, false), // back
		NewParallelogram(geom.Point{X: min.X, Y: min.Y, Z: min.Z}, dz, dy, mat, false), // left
		NewParallelogram(geom.Point{X: min.X, Y: max.Y, Z: max.Z}, dx, dz.Neg(), mat, false), // top
		NewParallelogram(geom.Point{X: min.X, Y: min.Y, Z: min.Z}, dx, dz, mat, false), // bottom
	}

	return &AxisAlignedBox{List: NewList(faces...)}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
