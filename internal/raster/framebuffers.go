//go:build !nogpu

package raster

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/surface"
)

var (
	// ErrStaleFramebuffers is returned when a frame from another surface
	// generation is looked up.
	ErrStaleFramebuffers = errors.New("raster: framebuffers belong to another surface generation")

	// ErrDestroyed is returned by View after Destroy.
	ErrDestroyed = errors.New("raster: framebuffers destroyed")

	// ErrNoTarget is returned for a frame that carries no view.
	ErrNoTarget = errors.New("raster: frame has no render target")
)

// maxTargets bounds the remembered images. Hosts that hand out a fresh
// view per frame would otherwise grow the list without limit.
const maxTargets = 8

// Framebuffers is the set of render targets of one surface generation.
// The swapchain owns the image views; the set only checks that a frame
// belongs to its generation and remembers the images it has seen, so a
// resize drops every reference in one place.
type Framebuffers struct {
	generation uint64
	views      []hal.TextureView
	destroyed  bool
}

// NewFramebuffers starts an empty framebuffer set for the given surface
// generation.
func (s *Stage) NewFramebuffers(generation uint64) *Framebuffers {
	s.builds++
	gpu.Logger().Debug("raster: framebuffers built", "generation", generation, "builds", s.builds)
	return &Framebuffers{generation: generation}
}

// Generation returns the surface generation the set was built for.
func (fb *Framebuffers) Generation() uint64 { return fb.generation }

// Len returns the number of distinct images remembered.
func (fb *Framebuffers) Len() int { return len(fb.views) }

// View returns the render target for f.
func (fb *Framebuffers) View(f surface.Frame) (hal.TextureView, error) {
	if fb.destroyed {
		return nil, ErrDestroyed
	}
	if f.Generation != fb.generation {
		return nil, fmt.Errorf("%w: frame %d, set %d", ErrStaleFramebuffers, f.Generation, fb.generation)
	}
	if f.View == nil {
		return nil, ErrNoTarget
	}
	if !slices.Contains(fb.views, f.View) {
		if len(fb.views) == maxTargets {
			fb.views = slices.Delete(fb.views, 0, 1)
		}
		fb.views = append(fb.views, f.View)
	}
	return f.View, nil
}

// Destroy forgets every image. It must run before the swapchain that owns
// the views is destroyed.
func (fb *Framebuffers) Destroy() {
	if fb == nil || fb.destroyed {
		return
	}
	fb.views = nil
	fb.destroyed = true
}
