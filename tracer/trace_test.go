package tracer

import (
	"context"
	"errors"
	"testing"

	"github.com/paulwrubel/luxide/geom"
	"github.com/paulwrubel/luxide/scenegraph"
	"github.com/paulwrubel/luxide/shading"
)

func testScene(t *testing.T, width, height int) *scenegraph.Scene {
	t.Helper()
	camera := &scenegraph.Camera{
		Eye:                geom.Point{Z: 1},
		Target:             geom.Point{},
		Up:                 geom.Vector{Y: 1},
		VerticalFOVDegrees: 90,
		FocusDistance:      1,
	}
	camera.Initialize(width, height)
	return &scenegraph.Scene{
		Root:       scenegraph.NewList(),
		Camera:     camera,
		Background: shading.Color{R: 0.5, G: 0.5, B: 0.5},
	}
}

func TestRenderIterationFillsEveryPixel(t *testing.T) {
	const width, height = 4, 4
	scene := testScene(t, width, height)
	prev := NewPixelData(width, height)
	opts := Options{SamplesPerCheckpoint: 2, MaxBounces: 4, TileWidth: 2, TileHeight: 2, WorkerCount: 2}

	next, err := RenderIteration(context.Background(), scene, prev, 1, opts, 1, nil)
	if err != nil {
		t.Fatalf("RenderIteration: %v", err)
	}
	for i, c := range next.Pixels {
		if c != scene.Background {
			t.Fatalf("pixel %d = %+v, want background %+v (no geometry in scene)", i, c, scene.Background)
		}
	}
}

func TestRenderIterationMergesAgainstPreviousCheckpoint(t *testing.T) {
	const width, height = 2, 2
	scene := testScene(t, width, height)
	prev := NewPixelData(width, height)
	for i := range prev.Pixels {
		prev.Pixels[i] = shading.Color{R: 1, G: 1, B: 1}
	}
	opts := Options{SamplesPerCheckpoint: 1, MaxBounces: 4, TileWidth: 2, TileHeight: 2, WorkerCount: 1}

	// k=3: new = ((3-1)*prev + scaled)/3. Every ray misses so scaled ==
	// background on every pixel.
	next, err := RenderIteration(context.Background(), scene, prev, 3, opts, 1, nil)
	if err != nil {
		t.Fatalf("RenderIteration: %v", err)
	}
	want := prev.At(0, 0).Scale(2).Add(scene.Background).Scale(1.0 / 3.0)
	got := next.At(0, 0)
	const eps = 1e-9
	if abs(got.R-want.R) > eps || abs(got.G-want.G) > eps || abs(got.B-want.B) > eps {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRenderIterationPausedContextReturnsErrPaused(t *testing.T) {
	const width, height = 20, 20
	scene := testScene(t, width, height)
	prev := NewPixelData(width, height)
	opts := Options{SamplesPerCheckpoint: 1, MaxBounces: 2, TileWidth: 2, TileHeight: 2, WorkerCount: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already canceled: no tile should even be dispatched

	_, err := RenderIteration(ctx, scene, prev, 1, opts, 1, nil)
	if !errors.Is(err, ErrPaused) {
		t.Fatalf("got err %v, want ErrPaused", err)
	}
}

func TestRenderIterationSendsOnePixelDonePerPixel(t *testing.T) {
	const width, height = 4, 4
	scene := testScene(t, width, height)
	prev := NewPixelData(width, height)
	opts := Options{SamplesPerCheckpoint: 1, MaxBounces: 2, TileWidth: 2, TileHeight: 2, WorkerCount: 2}

	done := make(chan struct{}, width*height)
	if _, err := RenderIteration(context.Background(), scene, prev, 1, opts, 1, done); err != nil {
		t.Fatalf("RenderIteration: %v", err)
	}
	close(done)
	count := 0
	for range done {
		count++
	}
	if count != width*height {
		t.Fatalf("got %d pixel-done packets, want %d", count, width*height)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
