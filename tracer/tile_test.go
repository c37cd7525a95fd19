package tracer

import (
	"math/rand"
	"testing"
)

func TestPartitionTilesCoversEveryPixelExactlyOnce(t *testing.T) {
	const width, height, tileW, tileH = 10, 7, 3, 4
	tiles := partitionTiles(width, height, tileW, tileH, rand.New(rand.NewSource(1)))

	covered := make([]int, width*height)
	for _, tile := range tiles {
		for y := tile.MinY; y < tile.MaxY; y++ {
			for x := tile.MinX; x < tile.MaxX; x++ {
				covered[y*width+x]++
			}
		}
	}
	for i, c := range covered {
		if c != 1 {
			t.Fatalf("pixel %d covered %d times, want exactly 1", i, c)
		}
	}
}

func TestPartitionTilesShufflesOrder(t *testing.T) {
	// Reference tiles in the row-major order partitionTiles enumerates
	// before shuffling.
	var rowMajor []Tile
	for y := 0; y < 20; y += 5 {
		for x := 0; x < 20; x += 5 {
			rowMajor = append(rowMajor, Tile{MinX: x, MinY: y, MaxX: x + 5, MaxY: y + 5})
		}
	}

	shuffled := partitionTiles(20, 20, 5, 5, rand.New(rand.NewSource(42)))
	if len(shuffled) != len(rowMajor) {
		t.Fatalf("got %d tiles, want %d", len(shuffled), len(rowMajor))
	}
	same := true
	for i := range shuffled {
		if shuffled[i] != rowMajor[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("shuffled tile order matches row-major order; expected a shuffle")
	}
}
