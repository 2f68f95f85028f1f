//go:build !nogpu

package tracer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/tracer/internal/gpu/gputest"
	"github.com/gogpu/tracer/internal/mesh"
	"github.com/gogpu/tracer/internal/surface"
	"github.com/gogpu/tracer/internal/window"
)

// watchedSwapchain records how many buffers were still alive when it was
// destroyed.
type watchedSwapchain struct {
	*gputest.Swapchain
	dev           *gputest.Device
	liveAtDestroy int
}

func (s *watchedSwapchain) Destroy() {
	s.liveAtDestroy = s.dev.Live()
	s.Swapchain.Destroy()
}

// fakeHost runs up to limit frames, then shuts down like the window does:
// close hooks first, with the device still usable.
type fakeHost struct {
	gpucontext.NullEventSource

	dev    window.Device
	devErr error
	sc     *watchedSwapchain
	limit  int

	// noHooks skips the close hooks, as when the loop fails before
	// shutdown.
	noHooks bool

	frames  int
	closing bool
	hooks   []func()
}

func newFakeHost(t *testing.T, limit int) *fakeHost {
	ctx, q, _ := gputest.NewRecordingContext(t)
	dev := gputest.DeviceOf(ctx)
	return &fakeHost{
		dev: window.Device{
			Device: dev,
			Queue:  q,
			Info:   ctx.Info(),
			Format: gputypes.TextureFormatBGRA8Unorm,
		},
		sc:    &watchedSwapchain{Swapchain: gputest.NewSwapchain(3), dev: dev},
		limit: limit,
	}
}

func (h *fakeHost) FramebufferSize() (int, int)      { return 64, 48 }
func (h *fakeHost) ShouldClose() bool                { return h.closing }
func (h *fakeHost) OnResize(func(width, height int)) {}
func (h *fakeHost) OnCapture(func(captured bool))    {}
func (h *fakeHost) Device() (window.Device, error)   { return h.dev, h.devErr }
func (h *fakeHost) Swapchain() surface.Swapchain     { return h.sc }
func (h *fakeHost) OnClose(fn func())                { h.hooks = append(h.hooks, fn) }

func (h *fakeHost) Loop(frame func() bool) error {
	for h.frames < h.limit {
		h.frames++
		if !frame() {
			break
		}
	}
	h.closing = true
	if !h.noHooks {
		for _, fn := range h.hooks {
			fn()
		}
	}
	return nil
}

func testMesh(t *testing.T) *mesh.Mesh {
	t.Helper()
	m, err := mesh.Decode(strings.NewReader("v 0 0 -3\nv 1 0 -3\nv 0 1 -3\nf 1 2 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunRendersUntilLoopEnds(t *testing.T) {
	h := newFakeHost(t, 3)
	if err := run(context.Background(), h, testMesh(t), defaultOptions()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.sc.Presented() == 0 {
		t.Error("no frame presented")
	}
	if !h.sc.Destroyed() {
		t.Error("swapchain not destroyed on close")
	}
}

func TestCloseReleasesBeforeSwapchain(t *testing.T) {
	h := newFakeHost(t, 3)
	if err := run(context.Background(), h, testMesh(t), defaultOptions()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.sc.liveAtDestroy != 0 {
		t.Errorf("%d buffers alive when the swapchain was destroyed, want 0", h.sc.liveAtDestroy)
	}
}

func TestRunClosesWithoutHooks(t *testing.T) {
	h := newFakeHost(t, 2)
	h.noHooks = true
	if err := run(context.Background(), h, testMesh(t), defaultOptions()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !h.sc.Destroyed() {
		t.Error("renderer not closed after the loop")
	}
	if live := h.sc.dev.Live(); live != 0 {
		t.Errorf("%d buffers alive after run, want 0", live)
	}
}

func TestRunDeviceUnavailable(t *testing.T) {
	h := newFakeHost(t, 5)
	h.devErr = window.ErrNoDevice
	err := run(context.Background(), h, testMesh(t), defaultOptions())
	if !errors.Is(err, window.ErrNoDevice) {
		t.Fatalf("err = %v, want window.ErrNoDevice", err)
	}
	if h.frames != 1 {
		t.Errorf("loop ran %d frames after the build failed, want 1", h.frames)
	}
}

func TestRunCancelled(t *testing.T) {
	h := newFakeHost(t, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := run(ctx, h, testMesh(t), defaultOptions()); err != nil {
		t.Fatalf("cancelled run: %v, want clean exit", err)
	}
	if h.frames != 1 {
		t.Errorf("loop ran %d frames after cancellation, want 1", h.frames)
	}
}
