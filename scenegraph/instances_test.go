package scenegraph

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/shading"
)

func TestRotateRoundTripIdentity(t *testing.T) {
	points := []geom.Point{
		{X: 1, Y: 2, Z: 3},
		{X: -0.5, Y: 0, Z: 4.25},
		{X: 0, Y: -7, Z: 0.001},
	}
	angles := []float64{0.3, math.Pi / 2, 2.1, -1.7}

	for axis := 0; axis < 3; axis++ {
		for _, angle := range angles {
			sin, cos := math.Sin(angle), math.Cos(angle)
			for _, p := range points {
				back := rotatePointInverse(rotatePoint(p, axis, sin, cos), axis, sin, cos)
				if !approxEqual(back.X, p.X, 1e-12) || !approxEqual(back.Y, p.Y, 1e-12) || !approxEqual(back.Z, p.Z, 1e-12) {
					t.Fatalf("axis %d angle %v: round trip of %+v gave %+v", axis, angle, p, back)
				}
			}
		}
	}
}

func TestTranslateShiftsHitIntoWorldSpace(t *testing.T) {
	mat := shading.Lambertian{Texture: shading.SolidColor{Color: shading.White}}
	tr := NewTranslate(Sphere{Center: geom.Point{}, Radius: 1, Material: mat}, geom.Vector{X: 0, Y: 0, Z: -3})
	r := geom.Ray{Origin: geom.Point{X: 0, Y: 0, Z: 3}, Direction: geom.Vector{X: 0, Y: 0, Z: -1}}

	hit, ok := tr.Intersect(r, geom.Interval{Min: 0.001, Max: 1e18}, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatalf("expected hit")
	}
	if !approxEqual(hit.T, 5, 1e-9) {
		t.Fatalf("T = %v, want 5", hit.T)
	}
	if !approxEqual(hit.Point.Z, -2, 1e-9) {
		t.Fatalf("Point = %+v, want z=-2", hit.Point)
	}
	if !approxEqual(hit.Normal.Z, 1, 1e-9) {
		t.Fatalf("Normal = %+v, want (0,0,1)", hit.Normal)
	}
}

func TestRotateYMovesSphereAroundOrigin(t *testing.T) {
	mat := shading.Lambertian{Texture: shading.SolidColor{Color: shading.White}}
	// A sphere at (1,0,0) rotated +90 degrees about Y lands at (0,0,-1).
	rot := NewRotateY(Sphere{Center: geom.Point{X: 1, Y: 0, Z: 0}, Radius: 0.5, Material: mat}, math.Pi/2, geom.Point{})
	r := geom.Ray{Origin: geom.Point{X: 0, Y: 0, Z: 3}, Direction: geom.Vector{X: 0, Y: 0, Z: -1}}

	hit, ok := rot.Intersect(r, geom.Interval{Min: 0.001, Max: 1e18}, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatalf("expected hit")
	}
	if !approxEqual(hit.T, 3.5, 1e-9) {
		t.Fatalf("T = %v, want 3.5", hit.T)
	}
	if !approxEqual(hit.Normal.Z, 1, 1e-9) {
		t.Fatalf("Normal = %+v, want (0,0,1)", hit.Normal)
	}
}

func TestRotateYAboutPivot(t *testing.T) {
	mat := shading.Lambertian{Texture: shading.SolidColor{Color: shading.White}}
	// A sphere at the origin rotated 180 degrees about a Y axis through
	// (1,0,0) lands at (2,0,0).
	pivot := geom.Point{X: 1, Y: 0, Z: 0}
	rot := NewRotateY(Sphere{Center: geom.Point{}, Radius: 0.5, Material: mat}, math.Pi, pivot)

	r := geom.Ray{Origin: geom.Point{X: 2, Y: 0, Z: 3}, Direction: geom.Vector{X: 0, Y: 0, Z: -1}}
	hit, ok := rot.Intersect(r, geom.Interval{Min: 0.001, Max: 1e18}, rand.New(rand.NewSource(1)))
	if !ok {
		t.Fatalf("expected hit at the rotated position")
	}
	if !approxEqual(hit.T, 2.5, 1e-9) {
		t.Fatalf("T = %v, want 2.5", hit.T)
	}
	if !approxEqual(hit.Point.X, 2, 1e-9) {
		t.Fatalf("Point = %+v, want x=2", hit.Point)
	}

	// The original position no longer intersects.
	miss := geom.Ray{Origin: geom.Point{X: 0, Y: 0, Z: 3}, Direction: geom.Vector{X: 0, Y: 0, Z: -1}}
	if _, ok := rot.Intersect(miss, geom.Interval{Min: 0.001, Max: 1e18}, rand.New(rand.NewSource(1))); ok {
		t.Fatalf("expected miss at the unrotated position")
	}

	box := rot.BoundingBox()
	if !box.X.Contains(2) || box.X.Contains(-0.4) {
		t.Fatalf("bounding box %+v not centered on the rotated position", box)
	}
}

func TestRotateBoundingBoxContainsChildCorners(t *testing.T) {
	mat := shading.Lambertian{Texture: shading.SolidColor{Color: shading.White}}
	child := Sphere{Center: geom.Point{X: 2, Y: 0, Z: 0}, Radius: 0.5, Material: mat}
	pivot := geom.Point{X: 0, Y: 1, Z: 0}
	rot := NewRotateZ(child, 0.7, pivot)

	sin, cos := math.Sin(0.7), math.Cos(0.7)
	box := rot.BoundingBox()
	for _, corner := range child.BoundingBox().Corners() {
		p := rotatePoint(corner.Sub(pivot), 2, sin, cos).Add(pivot)
		if !box.X.Contains(p.X) || !box.Y.Contains(p.Y) || !box.Z.Contains(p.Z) {
			t.Fatalf("rotated corner %+v outside box %+v", p, box)
		}
	}
}

func TestReverseNormalsFlips(t *testing.T) {
	mat := shading.Lambertian{Texture: shading.SolidColor{Color: shading.White}}
	s := Sphere{Center: geom.Point{}, Radius: 1, Material: mat}
	rev := ReverseNormals{Child: s}
	r := geom.Ray{Origin: geom.Point{X: 0, Y: 0, Z: 3}, Direction: geom.Vector{X: 0, Y: 0, Z: -1}}

	plain, ok1 := s.Intersect(r, geom.Universe, rand.New(rand.NewSource(1)))
	flipped, ok2 := rev.Intersect(r, geom.Universe, rand.New(rand.NewSource(1)))
	if !ok1 || !ok2 {
		t.Fatalf("expected both to hit")
	}
	if !approxEqual(flipped.Normal.Z, -plain.Normal.Z, 1e-12) {
		t.Fatalf("Normal = %+v, want negation of %+v", flipped.Normal, plain.Normal)
	}
	if flipped.FrontFace == plain.FrontFace {
		t.Fatalf("FrontFace not flipped")
	}
	if rev.BoundingBox() != s.BoundingBox() {
		t.Fatalf("bounding box changed by ReverseNormals")
	}
}
