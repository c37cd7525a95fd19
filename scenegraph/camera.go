package scenegraph

import (
	"math"
	"math/rand"

	"github.com/paulwrubel/luxide/geom"
)

// Camera holds the user-facing lens parameters; Initialize derives the
// cached basis used by RayAt.
type Camera struct {
	Eye                 geom.Point
	Target              geom.Point
	Up                  geom.Vector
	VerticalFOVDegrees  float64
	DefocusAngleDegrees float64
	FocusDistance       float64

	imageWidth, imageHeight int

	u, v, w                    geom.Vector
	pixelDeltaU, pixelDeltaV   geom.Vector
	pixelOrigin                geom.Point
	defocusDiskU, defocusDiskV geom.Vector
}

// Initialize caches the camera basis and pixel grid for the given image
// dimensions; must be called before RayAt.
func (c *Camera) Initialize(imageWidth, imageHeight int) {
	c.imageWidth, c.imageHeight = imageWidth, imageHeight

	theta := c.VerticalFOVDegrees * math.Pi / 180
	h := math.Tan(theta / 2)
	viewportHeight := 2 * h * c.FocusDistance
	viewportWidth := viewportHeight * (float64(imageWidth) / float64(imageHeight))

	c.w = c.Eye.Sub(c.Target).Unit()
	c.u = c.Up.Cross(c.w).Unit()
	c.v = c.w.Cross(c.u)

	viewportU := c.u.Scale(viewportWidth)
	viewportV := c.v.Neg().Scale(viewportHeight)

	c.pixelDeltaU = viewportU.Scale(1 / float64(imageWidth))
	c.pixelDeltaV = viewportV.Scale(1 / float64(imageHeight))

	viewportUpperLeft := c.Eye.
		Sub(c.w.Scale(c.FocusDistance)).
		Sub(viewportU.Scale(0.5)).
		Sub(viewportV.Scale(0.5))
	c.pixelOrigin = viewportUpperLeft.Add(c.pixelDeltaU.Add(c.pixelDeltaV).Scale(0.5))

	defocusRadius := c.FocusDistance * math.Tan(c.DefocusAngleDegrees/2*math.Pi/180)
	c.defocusDiskU = c.u.Scale(defocusRadius)
	c.defocusDiskV = c.v.Scale(defocusRadius)
}

// RayAt constructs a sample ray through pixel (x,y) with sub-pixel jitter
// (jitterX, jitterY in [0,1)), optional defocus-disk origin sampling, and a
// random shutter time in [0,1] for motion blur.
func (c *Camera) RayAt(rng *rand.Rand, x, y int, jitterX, jitterY float64) geom.Ray {
	pixelSample := c.pixelOrigin.
		Add(c.pixelDeltaU.Scale(float64(x) + jitterX)).
		Add(c.pixelDeltaV.Scale(float64(y) + jitterY))

	origin := c.Eye
	if c.DefocusAngleDegrees > 0 {
		origin = c.defocusDiskSample(rng)
	}

	return geom.Ray{
		Origin:    origin,
		Direction: pixelSample.Sub(origin),
		Time:      rng.Float64(),
	}
}

func (c *Camera) defocusDiskSample(rng *rand.Rand) geom.Point {
	p := geom.RandomInUnitDisk(rng)
	return c.Eye.Add(c.defocusDiskU.Scale(p.X)).Add(c.defocusDiskV.Scale(p.Y))
}
