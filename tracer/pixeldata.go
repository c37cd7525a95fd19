// Package tracer implements the tile-partitioned Monte Carlo path integrator
// that renders one checkpoint iteration.
package tracer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulwrubel/luxide/shading"
)

// PixelData is a dense w*h buffer of accumulated linear-space radiance,
// row-major with (0,0) at the top left. It is the value merged across
// checkpoint iterations and the payload a relational storage backend
// persists as a BLOB.
type PixelData struct {
	Width, Height int
	Pixels        []shading.Color
}

// NewPixelData allocates a black width*height buffer, the seed for
// checkpoint 1.
func NewPixelData(width, height int) PixelData {
	return PixelData{Width: width, Height: height, Pixels: make([]shading.Color, width*height)}
}

func (p PixelData) At(x, y int) shading.Color     { return p.Pixels[y*p.Width+x] }
func (p PixelData) Set(x, y int, c shading.Color) { p.Pixels[y*p.Width+x] = c }

const pixelDataMagic = "LXPX"

// Encode serializes p as a compact binary blob: a 4-byte magic, width and
// height as uint32, then each pixel's R, G, B as big-endian float64, in
// row-major order. Decode(Encode(p)) reconstructs p exactly.
func (p PixelData) Encode() []byte {
	buf := make([]byte, 4+4+4+len(p.Pixels)*3*8)
	copy(buf, pixelDataMagic)
	binary.BigEndian.PutUint32(buf[4:], uint32(p.Width))
	binary.BigEndian.PutUint32(buf[8:], uint32(p.Height))
	off := 12
	for _, c := range p.Pixels {
		binary.BigEndian.PutUint64(buf[off:], math.Float64bits(c.R))
		binary.BigEndian.PutUint64(buf[off+8:], math.Float64bits(c.G))
		binary.BigEndian.PutUint64(buf[off+16:], math.Float64bits(c.B))
		off += 24
	}
	return buf
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (PixelData, error) {
	if len(data) < 12 || string(data[:4]) != pixelDataMagic {
		return PixelData{}, fmt.Errorf("tracer: not a pixel data blob")
	}
	width := int(binary.BigEndian.Uint32(data[4:]))
	height := int(binary.BigEndian.Uint32(data[8:]))
	want := 12 + width*height*3*8
	if len(data) != want {
		return PixelData{}, fmt.Errorf("tracer: pixel data truncated: have %d bytes, want %d", len(data), want)
	}
	pd := NewPixelData(width, height)
	off := 12
	for i := range pd.Pixels {
		pd.Pixels[i] = shading.Color{
			R: math.Float64frombits(binary.BigEndian.Uint64(data[off:])),
			G: math.Float64frombits(binary.BigEndian.Uint64(data[off+8:])),
			B: math.Float64frombits(binary.BigEndian.Uint64(data[off+16:])),
		}
		off += 24
	}
	return pd, nil
}
