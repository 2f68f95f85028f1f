//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Context errors.
var (
	// ErrBackendUnavailable is returned when the requested graphics API
	// cannot be used on this platform.
	ErrBackendUnavailable = errors.New("gpu: backend not available")

	// ErrBrokenChain is returned when a submission does not follow the
	// latest issued token.
	ErrBrokenChain = errors.New("gpu: submission does not follow the latest token")

	// ErrTokenRegressed is returned when the queue hands out a submission
	// index that is not greater than the previous one.
	ErrTokenRegressed = errors.New("gpu: queue returned a non-increasing submission index")

	// ErrClosed is returned by operations on a closed context.
	ErrClosed = errors.New("gpu: context closed")
)

// Context wraps the logical device and queue for the lifetime of the
// renderer. The device is opened by the window host together with the
// swapchain and is never recreated; Context does not destroy it.
//
// Context also owns the submission chain: every command buffer goes
// through Submit, which hands back the Token that the next submission
// must name as its predecessor.
//
// Context is NOT safe for concurrent use. The frame loop drives it from
// a single goroutine.
type Context struct {
	info   gputypes.AdapterInfo
	device hal.Device
	queue  hal.Queue

	surfaceFormat gputypes.TextureFormat

	last     Token
	inFlight []submission
	deferred []func()
	closed   bool
}

// NewContext wraps a device and queue opened elsewhere.
func NewContext(device hal.Device, queue hal.Queue, info gputypes.AdapterInfo) *Context {
	Logger().Info("Using device",
		"name", info.Name,
		"type", info.DeviceType,
		"backend", info.Backend,
		"driver", info.Driver)
	return &Context{
		device: device,
		queue:  queue,
		info:   info,
	}
}

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// Info returns the adapter metadata.
func (c *Context) Info() gputypes.AdapterInfo { return c.info }

// Name returns the adapter name shown in the overlay.
func (c *Context) Name() string { return c.info.Name }

// SetSurfaceFormat records the swapchain format chosen by the surface
// manager so that Provider can report it.
func (c *Context) SetSurfaceFormat(f gputypes.TextureFormat) { c.surfaceFormat = f }

// SurfaceFormat returns the swapchain format, or TextureFormatUndefined
// before the surface is configured.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.surfaceFormat }

// Provider exposes the context through the gpucontext interfaces shared
// by the gogpu ecosystem. Device and Queue hold hal.Device and hal.Queue.
func (c *Context) Provider() gpucontext.DeviceProvider { return provider{c} }

// Encoder creates a command encoder that is already recording.
func (c *Context) Encoder(label string) (hal.CommandEncoder, error) {
	if c.closed {
		return nil, ErrClosed
	}
	enc, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	return enc, nil
}

// WaitIdle blocks until the device has finished all submitted work, then
// reclaims every submission and runs every pending release, including
// those scheduled for a submission that has not happened yet.
func (c *Context) WaitIdle() error {
	if c.device == nil {
		return ErrClosed
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpu: wait idle: %w", err)
	}
	for _, s := range c.inFlight {
		c.retire(s)
	}
	c.inFlight = c.inFlight[:0]
	c.runDeferred()
	return nil
}

func (c *Context) runDeferred() {
	deferred := c.deferred
	c.deferred = nil
	for _, fn := range deferred {
		fn()
	}
}

// Close waits for the device to go idle and runs every pending release.
// The device and queue stay alive; they belong to whoever opened them.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	err := c.WaitIdle()
	c.runDeferred()
	c.closed = true
	c.device = nil
	c.queue = nil
	return err
}

// provider adapts Context to gpucontext.DeviceProvider.
type provider struct{ c *Context }

var _ gpucontext.DeviceProvider = provider{}

func (p provider) Device() gpucontext.Device { return p.c.device }

func (p provider) Queue() gpucontext.Queue { return p.c.queue }

func (p provider) SurfaceFormat() gputypes.TextureFormat { return p.c.surfaceFormat }

// Adapter returns nil: the adapter stays with the host that opened the
// device.
func (p provider) Adapter() gpucontext.Adapter { return nil }

func (p provider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: p.c.info.Name,
		Type: adapterType(p.c.info.DeviceType),
	}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
