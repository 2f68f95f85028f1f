package tracer

import (
	"testing"
	"time"

	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.width != 1280 || o.height != 720 {
		t.Errorf("size = %dx%d, want 1280x720", o.width, o.height)
	}
	if o.fovX != 40 || o.fovY != 40 {
		t.Errorf("fov = (%v, %v), want (40, 40)", o.fovX, o.fovY)
	}
	if o.slices != 3 {
		t.Errorf("slices = %d, want 3", o.slices)
	}
	if o.fpsWindow != 100*time.Millisecond {
		t.Errorf("fpsWindow = %v, want 100ms", o.fpsWindow)
	}
	if o.presentMode != hal.PresentModeFifo {
		t.Errorf("presentMode = %v, want FIFO", o.presentMode)
	}
	if o.graphicsAPI != types.GraphicsAPIAuto {
		t.Errorf("graphicsAPI = %v, want auto", o.graphicsAPI)
	}
	if o.clearColor != (gputypes.Color{R: 0, G: 0, B: 1, A: 1}) {
		t.Errorf("clearColor = %+v, want opaque blue", o.clearColor)
	}
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		check func(o options) bool
	}{
		{"size", WithSize(800, 600), func(o options) bool { return o.width == 800 && o.height == 600 }},
		{"size ignores zero", WithSize(0, 600), func(o options) bool { return o.width == DefaultWidth && o.height == DefaultHeight }},
		{"title", WithTitle("bunny"), func(o options) bool { return o.title == "bunny" }},
		{"backend", WithBackend(types.GraphicsAPIMetal), func(o options) bool { return o.graphicsAPI == types.GraphicsAPIMetal }},
		{"present mode", WithPresentMode(hal.PresentModeMailbox), func(o options) bool { return o.presentMode == hal.PresentModeMailbox }},
		{"slices", WithUniformSlices(5), func(o options) bool { return o.slices == 5 }},
		{"slices ignores zero", WithUniformSlices(0), func(o options) bool { return o.slices == DefaultSlices }},
		{"fps window", WithFPSWindow(time.Second), func(o options) bool { return o.fpsWindow == time.Second }},
		{"fov", WithFOV(60, 45), func(o options) bool { return o.fovX == 60 && o.fovY == 45 }},
		{"fov ignores 180", WithFOV(180, 45), func(o options) bool { return o.fovX == DefaultFOV }},
		{"clear color", WithClearColor(gputypes.Color{R: 1, A: 1}), func(o options) bool { return o.clearColor.R == 1 && o.clearColor.B == 0 }},
		{"font", WithFont([]byte{1, 2}), func(o options) bool { return len(o.font) == 2 }},
		{"atlas size", WithAtlasSize(1024), func(o options) bool { return o.atlasSize == 1024 }},
		{"atlas size ignores negative", WithAtlasSize(-1), func(o options) bool { return o.atlasSize == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			if !tt.check(o) {
				t.Errorf("option not applied: %+v", o)
			}
		})
	}
}
