package tracer

import (
	"context"
	"errors"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/paulwrubel/luxide/luxrt"
	"github.com/paulwrubel/luxide/scenegraph"
	"github.com/paulwrubel/luxide/shading"
)

// Options configures one checkpoint iteration.
type Options struct {
	SamplesPerCheckpoint int
	MaxBounces           int
	TileWidth            int
	TileHeight           int
	WorkerCount          int
}

// ErrPaused is returned by RenderIteration when ctx is canceled before every
// tile was dispatched. Tiles already in flight are allowed to finish (a
// tile is an indivisible unit of scheduling); no remaining tile is started.
// The caller discards the returned buffer rather than merging a partial
// iteration into a checkpoint.
var ErrPaused = errors.New("tracer: iteration paused before completion")

// RenderIteration renders checkpoint iteration k against scene, merging
// each pixel's new samples with prev's value via the incremental mean
// new = ((k-1)*prev + scaled)/k. seed makes the tile shuffle and every
// tile's sampling stream reproducible for a given (config, seed, k).
//
// pixelDone, if non-nil, receives one value per finished pixel; a send
// that would block is dropped, since a slow progress collector must never
// throttle rendering.
func RenderIteration(ctx context.Context, scene *scenegraph.Scene, prev PixelData, k int, opts Options, seed int64, pixelDone chan<- struct{}) (PixelData, error) {
	width, height := prev.Width, prev.Height
	next := NewPixelData(width, height)

	shuffleRNG := rand.New(rand.NewSource(seed))
	tiles := partitionTiles(width, height, opts.TileWidth, opts.TileHeight, shuffleRNG)

	g, gCtx := errgroup.WithContext(ctx)
	if opts.WorkerCount > 0 {
		g.SetLimit(opts.WorkerCount)
	}

	dispatchedAll := true
	for i, tile := range tiles {
		select {
		case <-ctx.Done():
			dispatchedAll = false
		default:
		}
		if !dispatchedAll {
			break
		}

		tile := tile
		tileSeed := seed + int64(i)*2654435761 + int64(k)*40503
		g.Go(func() error {
			return luxrt.Safe(func() error {
				renderTile(gCtx, scene, prev, next, tile, k, opts, tileSeed, pixelDone)
				return nil
			})
		})
	}

	if err := g.Wait(); err != nil {
		return PixelData{}, err
	}
	if !dispatchedAll {
		return PixelData{}, ErrPaused
	}
	return next, nil
}

// renderTile fills every pixel of tile in next from samplesPerCheckpoint
// independent camera samples, merged against prev's value for that pixel.
func renderTile(ctx context.Context, scene *scenegraph.Scene, prev, next PixelData, tile Tile, k int, opts Options, tileSeed int64, pixelDone chan<- struct{}) {
	rng := rand.New(rand.NewSource(tileSeed))

	for y := tile.MinY; y < tile.MaxY; y++ {
		for x := tile.MinX; x < tile.MaxX; x++ {
			sum := shading.Black
			for s := 0; s < opts.SamplesPerCheckpoint; s++ {
				ray := scene.Camera.RayAt(rng, x, y, rng.Float64(), rng.Float64())
				sum = sum.Add(integrate(rng, ray, scene, opts.MaxBounces))
			}
			scaled := sum.Scale(1 / float64(opts.SamplesPerCheckpoint))
			next.Set(x, y, mergeCheckpoint(prev.At(x, y), scaled, k))

			if pixelDone != nil {
				select {
				case pixelDone <- struct{}{}:
				default:
				}
			}
		}
	}
	_ = ctx // tiles are indivisible: cancellation is only observed between tiles, not within one
}

// mergeCheckpoint folds a freshly-sampled pixel value into the running
// incremental mean across all k iterations: new = ((k-1)*prev + scaled)/k.
func mergeCheckpoint(prev, scaled shading.Color, k int) shading.Color {
	return prev.Scale(float64(k - 1)).Add(scaled).Scale(1 / float64(k))
}
