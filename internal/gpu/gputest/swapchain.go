//go:build !nogpu

package gputest

import (
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/tracer/internal/surface"
)

// View is a swapchain image view with an identity. Noop resources are
// zero-sized, so distinct views would otherwise compare equal.
type View struct {
	noop.Resource
	ID int
}

// Swapchain is a scripted surface.Swapchain. It cycles through Views on
// acquire and returns queued errors first.
type Swapchain struct {
	mu sync.Mutex

	// Caps is returned by Capabilities.
	Caps hal.SurfaceCapabilities
	// Views are handed out round-robin.
	Views []*View
	// AcquireErrs are returned, in order, before any image.
	AcquireErrs []error
	// ConfigureErr, when set, is returned by Configure.
	ConfigureErr error
	// PresentErr, when set, is returned by Present.
	PresentErr error
	// Suboptimal marks every acquired image suboptimal.
	Suboptimal bool

	next      int
	configs   []hal.SurfaceConfiguration
	acquired  int
	presented int
	discarded int
	destroyed bool
}

var _ surface.Swapchain = (*Swapchain)(nil)

// NewSwapchain returns a swapchain with n distinct images that offers
// BGRA8 and RGBA8 with every present mode.
func NewSwapchain(n int) *Swapchain {
	s := &Swapchain{
		Caps: hal.SurfaceCapabilities{
			Formats: []gputypes.TextureFormat{
				gputypes.TextureFormatBGRA8Unorm,
				gputypes.TextureFormatRGBA8Unorm,
			},
			PresentModes: []hal.PresentMode{
				hal.PresentModeFifo,
				hal.PresentModeFifoRelaxed,
				hal.PresentModeMailbox,
				hal.PresentModeImmediate,
			},
			AlphaModes: []hal.CompositeAlphaMode{gputypes.CompositeAlphaModeOpaque},
		},
	}
	for i := 0; i < n; i++ {
		s.Views = append(s.Views, &View{ID: i})
	}
	return s
}

// Capabilities returns Caps.
func (s *Swapchain) Capabilities() *hal.SurfaceCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	caps := s.Caps
	return &caps
}

// Configure records the configuration.
func (s *Swapchain) Configure(cfg hal.SurfaceConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ConfigureErr != nil {
		return s.ConfigureErr
	}
	s.configs = append(s.configs, cfg)
	return nil
}

// Acquire returns the next queued error or the next image.
func (s *Swapchain) Acquire() (surface.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.AcquireErrs) > 0 {
		err := s.AcquireErrs[0]
		s.AcquireErrs = s.AcquireErrs[1:]
		if err != nil {
			return surface.Image{}, err
		}
	}
	if len(s.Views) == 0 {
		return surface.Image{}, hal.ErrNotReady
	}
	v := s.Views[s.next%len(s.Views)]
	s.next++
	s.acquired++
	return surface.Image{View: v, Suboptimal: s.Suboptimal}, nil
}

// Present counts the call and returns PresentErr.
func (s *Swapchain) Present(surface.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented++
	return s.PresentErr
}

// Discard counts discarded images.
func (s *Swapchain) Discard(surface.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded++
}

// Destroy marks the swapchain destroyed.
func (s *Swapchain) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

// Configs returns every configuration applied so far.
func (s *Swapchain) Configs() []hal.SurfaceConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hal.SurfaceConfiguration(nil), s.configs...)
}

// Acquired returns how many images were handed out.
func (s *Swapchain) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// Presented returns how many times Present was called.
func (s *Swapchain) Presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented
}

// Discarded returns how many images were discarded.
func (s *Swapchain) Discarded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discarded
}

// Destroyed reports whether Destroy was called.
func (s *Swapchain) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Size is a fixed SizeSource.
type Size struct{ W, H int }

// FramebufferSize returns the stored size.
func (s *Size) FramebufferSize() (int, int) { return s.W, s.H }
