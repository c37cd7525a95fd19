package tracer

import "math/rand"

// Tile is one indivisible unit of scheduling: a rectangular pixel range
// [MinX,MaxX) x [MinY,MaxY).
type Tile struct {
	MinX, MinY, MaxX, MaxY int
}

// partitionTiles enumerates the image in row-major tiles of tileW x tileH
// (the final tile in each row/column may be smaller), then shuffles them
// with rng so workers don't all converge on the same image region at once.
func partitionTiles(imageWidth, imageHeight, tileW, tileH int, rng *rand.Rand) []Tile {
	var tiles []Tile
	for y := 0; y < imageHeight; y += tileH {
		maxY := y + tileH
		if maxY > imageHeight {
			maxY = imageHeight
		}
		for x := 0; x < imageWidth; x += tileW {
			maxX := x + tileW
			if maxX > imageWidth {
				maxX = imageWidth
			}
			tiles = append(tiles, Tile{MinX: x, MinY: y, MaxX: maxX, MaxY: maxY})
		}
	}
	rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
	return tiles
}
