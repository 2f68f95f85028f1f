//go:build !nogpu

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// trackedDevice is a noop device that remembers whether it was destroyed.
type trackedDevice struct {
	noop.Device
	destroyed bool
}

func (d *trackedDevice) Destroy() { d.destroyed = true }

func TestCloseLeavesDevice(t *testing.T) {
	device := &trackedDevice{}
	ctx := NewContext(device, &noop.Queue{}, gputypes.AdapterInfo{Name: "Noop Adapter"})
	if ctx.Name() != "Noop Adapter" {
		t.Errorf("Name() = %q, want %q", ctx.Name(), "Noop Adapter")
	}

	released := false
	ctx.Release(func() { released = true })
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !released {
		t.Error("Close did not run the pending release")
	}
	if device.destroyed {
		t.Error("Close destroyed a device it does not own")
	}
	if ctx.Device() != nil {
		t.Error("Close should drop the device")
	}
	if _, err := ctx.Encoder("after close"); !errors.Is(err, ErrClosed) {
		t.Errorf("Encoder after Close: err = %v, want ErrClosed", err)
	}
	if err := ctx.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWaitIdleRunsPendingReleases(t *testing.T) {
	ctx := NewContext(&noop.Device{}, &noop.Queue{}, gputypes.AdapterInfo{})

	var order []string
	ctx.Release(func() { order = append(order, "view") })
	ctx.Release(func() { order = append(order, "bind group") })

	if err := ctx.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
	if len(order) != 2 || order[0] != "view" || order[1] != "bind group" {
		t.Errorf("releases ran as %q, want both in scheduling order", order)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(order) != 2 {
		t.Errorf("releases ran %d times, want once each", len(order))
	}
}

func TestProvider(t *testing.T) {
	device := &noop.Device{}
	queue := &noop.Queue{}
	ctx := NewContext(device, queue, gputypes.AdapterInfo{
		Name:       "Test GPU",
		DeviceType: gputypes.DeviceTypeIntegratedGPU,
	})
	ctx.SetSurfaceFormat(gputypes.TextureFormatBGRA8Unorm)

	p := ctx.Provider()
	if p.Device() != hal.Device(device) {
		t.Error("Device() does not return the wrapped device")
	}
	if p.Queue() != hal.Queue(queue) {
		t.Error("Queue() does not return the wrapped queue")
	}
	if p.Adapter() != nil {
		t.Error("Adapter() should be nil")
	}
	if got := p.SurfaceFormat(); got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("SurfaceFormat() = %v", got)
	}
	info := p.AdapterInfo()
	if info.Name != "Test GPU" || info.Type != gpucontext.AdapterTypeIntegrated {
		t.Errorf("AdapterInfo() = %+v", info)
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeVirtualGPU, gpucontext.AdapterTypeUnknown},
		{gputypes.DeviceTypeOther, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
