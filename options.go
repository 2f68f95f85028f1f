package tracer

import (
	"time"

	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Defaults used when no option overrides them.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultTitle  = "tracer"
	DefaultFOV    = 40
	DefaultSlices = 3
)

// DefaultFPSWindow is the rolling window of the on-screen frame rate.
const DefaultFPSWindow = 100 * time.Millisecond

// DefaultClearColor is opaque blue.
var DefaultClearColor = gputypes.Color{R: 0, G: 0, B: 1, A: 1}

// Option configures Run.
//
// Example:
//
//	err := tracer.Run(ctx, "bunny.obj",
//	    tracer.WithSize(1920, 1080),
//	    tracer.WithPresentMode(hal.PresentModeMailbox))
type Option func(*options)

type options struct {
	width, height int
	title         string
	graphicsAPI   types.GraphicsAPI
	presentMode   hal.PresentMode
	slices        int
	fpsWindow     time.Duration
	fovX, fovY    float32
	clearColor    gputypes.Color
	font          []byte
	atlasSize     int
}

func defaultOptions() options {
	return options{
		width:       DefaultWidth,
		height:      DefaultHeight,
		title:       DefaultTitle,
		graphicsAPI: types.GraphicsAPIAuto,
		presentMode: hal.PresentModeFifo,
		slices:      DefaultSlices,
		fpsWindow:   DefaultFPSWindow,
		fovX:        DefaultFOV,
		fovY:        DefaultFOV,
		clearColor:  DefaultClearColor,
	}
}

// WithSize sets the initial window size in screen coordinates.
// Non-positive values are ignored.
func WithSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(o *options) {
		o.title = title
	}
}

// WithBackend selects the graphics API. GraphicsAPIAuto, the default,
// picks the best one for the platform. Use ParseBackend to validate a
// name against the platform first.
func WithBackend(api types.GraphicsAPI) Option {
	return func(o *options) {
		o.graphicsAPI = api
	}
}

// WithPresentMode requests a present mode. Modes the surface does not
// support fall back to FIFO.
func WithPresentMode(m hal.PresentMode) Option {
	return func(o *options) {
		o.presentMode = m
	}
}

// WithUniformSlices sets the number of per-frame uniform slices, which
// bounds how many frames the CPU may run ahead of the GPU.
func WithUniformSlices(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.slices = n
		}
	}
}

// WithFPSWindow sets the rolling window of the frame rate display.
func WithFPSWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fpsWindow = d
		}
	}
}

// WithFOV sets the horizontal and vertical field of view in degrees.
func WithFOV(x, y float32) Option {
	return func(o *options) {
		if x > 0 && x < 180 && y > 0 && y < 180 {
			o.fovX, o.fovY = x, y
		}
	}
}

// WithClearColor sets the color the render pass clears to.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithFont replaces the overlay font with a TrueType or OpenType file.
func WithFont(ttf []byte) Option {
	return func(o *options) {
		o.font = ttf
	}
}

// WithAtlasSize sets the edge length of the overlay glyph atlas in
// pixels. It is rounded up to a multiple of 256; non-positive values are
// ignored.
func WithAtlasSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.atlasSize = n
		}
	}
}
