package scenegraph

import "github.com/paulwrubel/luxide/shading"

// Scene is immutable once built and shared by all tracer workers. Because
// nothing mutates a Scene after Compile returns, plain Go pointers are safe
// to share across goroutines with no locking: the happens-before edge is
// established when the owning goroutine is started.
type Scene struct {
	Name       string
	Root       Hittable
	Camera     *Camera
	Background shading.Color
}
