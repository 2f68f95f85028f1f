package window

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/surface"
)

// swapchain exposes the surface gogpu manages as a surface.Swapchain.
// gogpu acquires the image lazily, presents it after the frame callback
// and reconfigures the surface on resize, so Present and Destroy have
// nothing to do. Images are only available during a frame.
type swapchain struct {
	w             *Window
	width, height uint32
}

var _ surface.Swapchain = (*swapchain)(nil)

// Swapchain returns the window's swapchain.
func (w *Window) Swapchain() surface.Swapchain { return &swapchain{w: w} }

// Capabilities offers the format gogpu configured, FIFO, and the present
// mode the window was created with.
func (s *swapchain) Capabilities() *hal.SurfaceCapabilities {
	format := gputypes.TextureFormatBGRA8Unorm
	if s.w.app != nil {
		if dp := s.w.app.DeviceProvider(); dp != nil {
			format = dp.SurfaceFormat()
		}
	}
	modes := []hal.PresentMode{hal.PresentModeFifo}
	if m := s.w.cfg.PresentMode; m != hal.PresentModeFifo {
		modes = append(modes, m)
	}
	return &hal.SurfaceCapabilities{
		Formats:      []gputypes.TextureFormat{format},
		PresentModes: modes,
		AlphaModes:   []hal.CompositeAlphaMode{gputypes.CompositeAlphaModeOpaque},
	}
}

// Configure records the extent the caller renders at.
func (s *swapchain) Configure(cfg hal.SurfaceConfiguration) error {
	s.width, s.height = cfg.Width, cfg.Height
	return nil
}

// Acquire returns the image of the frame being drawn. The image is
// outdated when gogpu has resized the surface since Configure.
func (s *swapchain) Acquire() (surface.Image, error) {
	t := s.w.draw
	if t == nil {
		return surface.Image{}, hal.ErrNotReady
	}
	if w, h := t.SurfaceSize(); w != s.width || h != s.height {
		return surface.Image{}, hal.ErrSurfaceOutdated
	}
	view := t.View()
	if view == nil {
		return surface.Image{}, hal.ErrNotReady
	}
	return surface.Image{View: view}, nil
}

func (s *swapchain) Present(surface.Image) error { return nil }

func (s *swapchain) Discard(surface.Image) {}

func (s *swapchain) Destroy() {}
