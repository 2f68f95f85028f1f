//go:build !nogpu

// Package surface manages the presentation swapchain: configuration,
// recreation after invalidation, image acquisition and presentation.
//
// The swapchain itself belongs to the window host, which opened the device
// together with it. Manager drives it through the Swapchain interface.
package surface

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
)

var (
	// ErrOutOfDate means the swapchain no longer matches the window and
	// must be recreated before the next acquire.
	ErrOutOfDate = errors.New("surface: out of date")

	// ErrNotReady means no image was available; the frame is skipped.
	ErrNotReady = errors.New("surface: no image ready")

	// ErrUnsupported is returned when the adapter reports no usable
	// surface format.
	ErrUnsupported = errors.New("surface: adapter cannot present to surface")
)

// SizeSource reports the drawable size in pixels.
type SizeSource interface {
	FramebufferSize() (width, height int)
}

// Image is a swapchain image handed out by Acquire. The swapchain owns
// View and keeps it valid until the image is presented or discarded.
type Image struct {
	View       hal.TextureView
	Suboptimal bool
}

// Swapchain is the presentation engine behind a window. Acquire and
// Present report invalidation with hal.ErrSurfaceOutdated, and a missing
// image with hal.ErrNotReady or hal.ErrTimeout.
type Swapchain interface {
	Capabilities() *hal.SurfaceCapabilities
	Configure(cfg hal.SurfaceConfiguration) error
	Acquire() (Image, error)
	Present(img Image) error
	Discard(img Image)
	Destroy()
}

// Frame is an acquired swapchain image.
type Frame struct {
	// View is the render target for the image.
	View hal.TextureView
	// Suboptimal is set when the image can be presented but the swapchain
	// should be recreated afterwards.
	Suboptimal bool
	// Generation is the surface generation the image belongs to.
	Generation uint64
}

// Config selects swapchain parameters. Unsupported choices fall back to
// FIFO presentation.
type Config struct {
	PresentMode hal.PresentMode
}

// Manager owns the swapchain configuration.
type Manager struct {
	gpu       *gpu.Context
	swapchain Swapchain

	format      gputypes.TextureFormat
	presentMode hal.PresentMode
	alphaMode   hal.CompositeAlphaMode

	width, height uint32
	generation    uint64
	configured    bool
}

// New picks format, present mode and alpha mode from the swapchain's
// capabilities. The swapchain is not configured until the first Recreate.
func New(g *gpu.Context, sc Swapchain, cfg Config) (*Manager, error) {
	caps := sc.Capabilities()
	if caps == nil || len(caps.Formats) == 0 {
		return nil, ErrUnsupported
	}

	m := &Manager{
		gpu:         g,
		swapchain:   sc,
		format:      chooseFormat(caps.Formats),
		presentMode: choosePresentMode(caps.PresentModes, cfg.PresentMode),
		alphaMode:   chooseAlphaMode(caps.AlphaModes),
	}
	g.SetSurfaceFormat(m.format)

	gpu.Logger().Debug("surface: capabilities",
		"format", m.format,
		"present_mode", m.presentMode,
		"alpha_mode", m.alphaMode)
	return m, nil
}
// chooseFormat prefers 8-bit unorm formats so the shared image is copied
// through without a second gamma curve.
func chooseFormat(formats []gputypes.TextureFormat) gputypes.TextureFormat {
	for _, want := range []gputypes.TextureFormat{
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatRGBA8Unorm,
	} {
		if slices.Contains(formats, want) {
			return want
		}
	}
	return formats[0]
}

func choosePresentMode(modes []hal.PresentMode, want hal.PresentMode) hal.PresentMode {
	if want != gputypes.PresentModeUndefined && slices.Contains(modes, want) {
		return want
	}
	return hal.PresentModeFifo
}

// ParsePresentMode maps a command-line name to a present mode. The empty
// name selects FIFO.
func ParsePresentMode(name string) (hal.PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fifo", "vsync":
		return hal.PresentModeFifo, nil
	case "fifo-relaxed", "relaxed":
		return hal.PresentModeFifoRelaxed, nil
	case "mailbox":
		return hal.PresentModeMailbox, nil
	case "immediate":
		return hal.PresentModeImmediate, nil
	default:
		return gputypes.PresentModeUndefined, fmt.Errorf("surface: unknown present mode %q", name)
	}
}

func chooseAlphaMode(modes []hal.CompositeAlphaMode) hal.CompositeAlphaMode {
	if len(modes) == 0 || slices.Contains(modes, gputypes.CompositeAlphaModeOpaque) {
		return gputypes.CompositeAlphaModeOpaque
	}
	return modes[0]
}

// Recreate configures the swapchain for the window's current drawable
// size. It reports false on zero area or configure failure and leaves the
// previous state untouched; callers retry on the next iteration.
func (m *Manager) Recreate(win SizeSource) bool {
	w, h := win.FramebufferSize()
	if w <= 0 || h <= 0 {
		gpu.Logger().Debug("surface: zero area, recreation deferred", "width", w, "height", h)
		return false
	}

	err := m.swapchain.Configure(hal.SurfaceConfiguration{
		Width:       uint32(w),
		Height:      uint32(h),
		Format:      m.format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: m.presentMode,
		AlphaMode:   m.alphaMode,
	})
	if err != nil {
		gpu.Logger().Warn("surface: configure failed", "width", w, "height", h, "err", err)
		return false
	}

	m.width, m.height = uint32(w), uint32(h)
	m.generation++
	m.configured = true
	gpu.Logger().Info("surface: recreated", "width", w, "height", h, "generation", m.generation)
	return true
}

// Acquire returns the next image to render into.
func (m *Manager) Acquire() (Frame, error) {
	if !m.configured {
		return Frame{}, ErrOutOfDate
	}

	img, err := m.swapchain.Acquire()
	switch {
	case err == nil:
	case errors.Is(err, hal.ErrSurfaceOutdated), errors.Is(err, hal.ErrZeroArea):
		return Frame{}, ErrOutOfDate
	case errors.Is(err, hal.ErrNotReady), errors.Is(err, hal.ErrTimeout):
		return Frame{}, ErrNotReady
	default:
		return Frame{}, fmt.Errorf("surface: acquire: %w", err)
	}
	if img.View == nil {
		return Frame{}, ErrNotReady
	}

	return Frame{
		View:       img.View,
		Suboptimal: img.Suboptimal,
		Generation: m.generation,
	}, nil
}

// Present queues f for display. An outdated swapchain maps to
// ErrOutOfDate; other errors are fatal.
func (m *Manager) Present(f Frame) error {
	err := m.swapchain.Present(Image{View: f.View, Suboptimal: f.Suboptimal})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return ErrOutOfDate
	default:
		return fmt.Errorf("surface: present: %w", err)
	}
}

// Discard returns an acquired image without presenting it.
func (m *Manager) Discard(f Frame) {
	if f.View != nil {
		m.swapchain.Discard(Image{View: f.View, Suboptimal: f.Suboptimal})
	}
}

// Extent returns the size used by the last successful recreation.
func (m *Manager) Extent() (width, height uint32) { return m.width, m.height }

// Format returns the swapchain texture format.
func (m *Manager) Format() gputypes.TextureFormat { return m.format }

// PresentMode returns the negotiated present mode.
func (m *Manager) PresentMode() hal.PresentMode { return m.presentMode }

// Generation is bumped on every successful recreation.
func (m *Manager) Generation() uint64 { return m.generation }

// Destroy releases the swapchain. The device must be idle and every view
// handed out by Acquire must be dropped.
func (m *Manager) Destroy() {
	if m.swapchain == nil {
		return
	}
	m.swapchain.Destroy()
	m.swapchain = nil
	m.configured = false
}
