//go:build !nogpu

package gpu_test

import (
	"errors"
	"testing"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/gpu/gputest"
)

func TestNewSharedImage(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)

	img, err := ctx.NewSharedImage(1280, 720, 3)
	if err != nil {
		t.Fatalf("NewSharedImage failed: %v", err)
	}
	defer img.Destroy()

	if img.Width() != 1280 || img.Height() != 720 {
		t.Errorf("extent = %dx%d, want 1280x720", img.Width(), img.Height())
	}
	if img.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", img.Generation())
	}
	if img.Texture() == nil || img.StorageView() == nil || img.SampledView() == nil {
		t.Fatal("shared image is missing its texture or views")
	}
	if !img.Matches(1280, 720) || img.Matches(640, 720) {
		t.Error("Matches does not compare the extent")
	}
}

func TestNewSharedImageZeroExtent(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)

	for _, ext := range [][2]uint32{{0, 720}, {1280, 0}, {0, 0}} {
		if _, err := ctx.NewSharedImage(ext[0], ext[1], 1); !errors.Is(err, gpu.ErrInvalidDimensions) {
			t.Errorf("NewSharedImage(%d, %d): err = %v, want ErrInvalidDimensions", ext[0], ext[1], err)
		}
	}
}

func TestSharedImageDestroyTwice(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)

	img, err := ctx.NewSharedImage(16, 16, 1)
	if err != nil {
		t.Fatalf("NewSharedImage failed: %v", err)
	}
	img.Destroy()
	img.Destroy()
	if img.Texture() != nil {
		t.Error("Destroy should drop the texture")
	}

	var nilImg *gpu.SharedImage
	if nilImg.Matches(16, 16) {
		t.Error("nil image must never match")
	}
}
