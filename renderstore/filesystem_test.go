package renderstore

import (
	"errors"
	"testing"

	"github.com/paulwrubel/luxide/shading"
	"github.com/paulwrubel/luxide/tracer"
)

func TestFilesystemCreateAndGetRenderRoundTrip(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	r := newTestRender(1, "alice")
	if err := fs.CreateRender(r); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}
	got, err := fs.GetRender(1)
	if err != nil {
		t.Fatalf("GetRender: %v", err)
	}
	if got.OwnerUserID != "alice" || got.Config.Parameters.ImageWidth != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestFilesystemReopenRebuildsDirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFilesystem(dir)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	if err := fs.CreateRender(newTestRender(1, "alice")); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}
	if err := fs.CreateRender(newTestRender(5, "alice")); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}

	reopened, err := NewFilesystem(dir)
	if err != nil {
		t.Fatalf("reopen NewFilesystem: %v", err)
	}
	if _, err := reopened.GetRender(1); err != nil {
		t.Fatalf("GetRender(1) after reopen: %v", err)
	}
	if _, err := reopened.GetRender(5); err != nil {
		t.Fatalf("GetRender(5) after reopen: %v", err)
	}
	id, err := reopened.NextID()
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if id <= 5 {
		t.Fatalf("NextID after reopen returned %d, want > 5", id)
	}
}

func TestFilesystemCheckpointRoundTripIsLossyButClose(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	if err := fs.CreateRender(newTestRender(1, "alice")); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}

	pixels := tracer.NewPixelData(2, 2)
	pixels.Set(0, 0, shading.Color{R: 0.25, G: 0.5, B: 0.75})
	if err := fs.CreateRenderCheckpoint(RenderCheckpoint{RenderID: 1, Iteration: 1, Pixels: pixels}); err != nil {
		t.Fatalf("CreateRenderCheckpoint: %v", err)
	}

	got, err := fs.GetRenderCheckpoint(1, 1)
	if err != nil {
		t.Fatalf("GetRenderCheckpoint: %v", err)
	}
	c := got.Pixels.At(0, 0)
	const tolerance = 1.0 / 255
	if diff := c.R - 0.25; diff > tolerance || diff < -tolerance {
		t.Fatalf("R round trip: got %v, want ~0.25", c.R)
	}
	if diff := c.B - 0.75; diff > tolerance || diff < -tolerance {
		t.Fatalf("B round trip: got %v, want ~0.75", c.B)
	}

	if err := fs.CreateRenderCheckpoint(RenderCheckpoint{RenderID: 1, Iteration: 1, Pixels: pixels}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate checkpoint: got %v, want ErrConflict", err)
	}
}

func TestFilesystemDeleteRemovesDirectory(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	if err := fs.CreateRender(newTestRender(1, "alice")); err != nil {
		t.Fatalf("CreateRender: %v", err)
	}
	if err := fs.DeleteRenderAndCheckpoints(1); err != nil {
		t.Fatalf("DeleteRenderAndCheckpoints: %v", err)
	}
	if _, err := fs.GetRender(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
