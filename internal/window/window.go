// Package window opens the desktop window the tracer presents into. It
// wraps a gogpu application, which owns the platform window, the GPU
// device and the surface, and exposes them through the gpucontext event
// interfaces and a surface.Swapchain.
//
// Platform events arrive on the main thread while frames are drawn on the
// render thread. Listeners registered here always run on the render
// thread, just before the frame callback.
package window

import (
	"errors"
	"sync"

	"github.com/gogpu/gogpu"
	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
	"github.com/gogpu/wgpu/hal"
)

// Default window size in screen coordinates.
const (
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrNoDevice is returned by Device before the application has opened
// its GPU device.
var ErrNoDevice = errors.New("window: GPU device not open")

// Config describes the window and the device behind it.
type Config struct {
	Width, Height int
	Title         string
	// GraphicsAPI selects the backend; GraphicsAPIAuto lets gogpu pick.
	GraphicsAPI types.GraphicsAPI
	// PresentMode picks vsync for the FIFO modes and tearing otherwise.
	PresentMode hal.PresentMode
}

// shell is the part of the application the event handlers drive.
type shell interface {
	SetCursorMode(mode gpucontext.CursorMode)
	Quit()
}

// Window is a resizable gogpu window. The cursor starts captured for
// mouse look. Escape releases it; a second Escape closes the window.
// Clicking into the window captures it again.
type Window struct {
	gpucontext.NullEventSource

	app   *gogpu.App
	shell shell
	cfg   Config

	mu       sync.Mutex
	captured bool
	closing  bool
	pending  []func()

	draw    target
	started bool

	keyPress   []func(gpucontext.Key, gpucontext.Modifiers)
	keyRelease []func(gpucontext.Key, gpucontext.Modifiers)
	mouseMove  []func(x, y float64)
	pointer    []func(gpucontext.PointerEvent)
	resize     []func(width, height int)
	focus      []func(focused bool)
	captures   []func(captured bool)
	close      []func()
}

var (
	_ gpucontext.EventSource        = (*Window)(nil)
	_ gpucontext.PointerEventSource = (*Window)(nil)
)

// New creates the application window. Nothing is shown and no device is
// opened until Loop runs.
func New(cfg Config) *Window {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	vsync := cfg.PresentMode == hal.PresentModeFifo || cfg.PresentMode == hal.PresentModeFifoRelaxed

	app := gogpu.NewApp(gogpu.DefaultConfig().
		WithTitle(cfg.Title).
		WithSize(cfg.Width, cfg.Height).
		WithBackend(gogpu.BackendNative).
		WithGraphicsAPI(cfg.GraphicsAPI).
		WithVSync(vsync).
		WithContinuousRender(true))

	w := newWindow(app, cfg)
	w.app = app

	events := app.EventSource()
	events.OnKeyPress(w.onKeyPress)
	events.OnKeyRelease(w.onKeyRelease)
	events.OnMouseMove(w.onMouseMove)
	events.OnResize(w.onResize)
	events.OnFocus(w.onFocus)
	if ps, ok := events.(gpucontext.PointerEventSource); ok {
		ps.OnPointer(w.onPointer)
	}
	app.OnClose(w.onClose)
	return w
}

func newWindow(s shell, cfg Config) *Window {
	w := &Window{shell: s, cfg: cfg}
	w.capture(true)
	return w
}

// capture must be called with w.mu held or before the window is shared.
func (w *Window) capture(on bool) {
	mode := gpucontext.CursorModeNormal
	if on {
		mode = gpucontext.CursorModeLocked
	}
	w.shell.SetCursorMode(mode)
	w.captured = on
	for _, fn := range w.captures {
		w.pending = append(w.pending, func() { fn(on) })
	}
}

// dispatch runs the listeners of every event received since the last
// call.
func (w *Window) dispatch() {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

func (w *Window) onKeyPress(key gpucontext.Key, mods gpucontext.Modifiers) {
	w.mu.Lock()
	if key == gpucontext.KeyEscape {
		if w.captured {
			w.capture(false)
		} else {
			w.closing = true
			w.shell.Quit()
		}
	}
	for _, fn := range w.keyPress {
		w.pending = append(w.pending, func() { fn(key, mods) })
	}
	w.mu.Unlock()
}

func (w *Window) onKeyRelease(key gpucontext.Key, mods gpucontext.Modifiers) {
	w.mu.Lock()
	for _, fn := range w.keyRelease {
		w.pending = append(w.pending, func() { fn(key, mods) })
	}
	w.mu.Unlock()
}

func (w *Window) onMouseMove(x, y float64) {
	w.mu.Lock()
	if w.captured {
		for _, fn := range w.mouseMove {
			w.pending = append(w.pending, func() { fn(x, y) })
		}
	}
	w.mu.Unlock()
}

func (w *Window) onPointer(ev gpucontext.PointerEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ev.Type == gpucontext.PointerDown && ev.Button == gpucontext.ButtonLeft && !w.captured {
		w.capture(true)
		return
	}
	if !w.captured {
		return
	}
	for _, fn := range w.pointer {
		w.pending = append(w.pending, func() { fn(ev) })
	}
}

func (w *Window) onResize(width, height int) {
	w.mu.Lock()
	for _, fn := range w.resize {
		w.pending = append(w.pending, func() { fn(width, height) })
	}
	w.mu.Unlock()
}

func (w *Window) onFocus(focused bool) {
	w.mu.Lock()
	for _, fn := range w.focus {
		w.pending = append(w.pending, func() { fn(focused) })
	}
	w.mu.Unlock()
}

// onClose runs on the render thread while the device is still alive.
func (w *Window) onClose() {
	w.mu.Lock()
	w.closing = true
	fns := w.close
	w.close = nil
	w.mu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// OnCapture registers fn to run whenever the cursor is captured or
// released.
func (w *Window) OnCapture(fn func(captured bool)) {
	w.mu.Lock()
	w.captures = append(w.captures, fn)
	w.mu.Unlock()
}

// Captured reports whether the cursor is captured for mouse look.
func (w *Window) Captured() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.captured
}

// OnKeyPress implements gpucontext.EventSource.
func (w *Window) OnKeyPress(fn func(gpucontext.Key, gpucontext.Modifiers)) {
	w.mu.Lock()
	w.keyPress = append(w.keyPress, fn)
	w.mu.Unlock()
}

// OnKeyRelease implements gpucontext.EventSource.
func (w *Window) OnKeyRelease(fn func(gpucontext.Key, gpucontext.Modifiers)) {
	w.mu.Lock()
	w.keyRelease = append(w.keyRelease, fn)
	w.mu.Unlock()
}

// OnMouseMove implements gpucontext.EventSource. Positions are only
// reported while the cursor is captured.
func (w *Window) OnMouseMove(fn func(x, y float64)) {
	w.mu.Lock()
	w.mouseMove = append(w.mouseMove, fn)
	w.mu.Unlock()
}

// OnPointer implements gpucontext.PointerEventSource. Events are only
// reported while the cursor is captured; the click that captures it is
// swallowed.
func (w *Window) OnPointer(fn func(gpucontext.PointerEvent)) {
	w.mu.Lock()
	w.pointer = append(w.pointer, fn)
	w.mu.Unlock()
}

// OnResize implements gpucontext.EventSource.
func (w *Window) OnResize(fn func(width, height int)) {
	w.mu.Lock()
	w.resize = append(w.resize, fn)
	w.mu.Unlock()
}

// OnFocus implements gpucontext.EventSource.
func (w *Window) OnFocus(fn func(focused bool)) {
	w.mu.Lock()
	w.focus = append(w.focus, fn)
	w.mu.Unlock()
}

// OnClose registers fn to run when the application shuts down, before the
// GPU device is destroyed. Functions run in reverse registration order.
func (w *Window) OnClose(fn func()) {
	w.mu.Lock()
	w.close = append(w.close, fn)
	w.mu.Unlock()
}

// FramebufferSize returns the drawable size in pixels.
func (w *Window) FramebufferSize() (width, height int) {
	if w.draw != nil {
		return w.draw.FramebufferSize()
	}
	if w.app != nil {
		return w.app.PhysicalSize()
	}
	return w.cfg.Width, w.cfg.Height
}

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closing
}

// Close asks the application to quit after the current frame.
func (w *Window) Close() {
	w.mu.Lock()
	w.closing = true
	w.mu.Unlock()
	w.shell.Quit()
}

// Loop shows the window and calls frame once per redraw on the render
// thread until frame returns false or the window closes. It must be
// called from the main goroutine with the OS thread locked.
func (w *Window) Loop(frame func() bool) error {
	w.app.OnDraw(func(ctx *gogpu.Context) {
		w.step(drawTarget{ctx}, frame)
	})
	return w.app.Run()
}

func (w *Window) step(t target, frame func() bool) {
	w.draw = t
	defer func() { w.draw = nil }()
	if !w.started {
		// The platform window exists only once the loop runs.
		w.started = true
		w.mu.Lock()
		w.capture(w.captured)
		w.mu.Unlock()
	}
	w.dispatch()
	if w.ShouldClose() {
		return
	}
	if !frame() {
		w.Close()
	}
}

// target is the surface image of the frame being drawn.
type target interface {
	FramebufferSize() (width, height int)
	SurfaceSize() (width, height uint32)
	View() hal.TextureView
}

type drawTarget struct{ *gogpu.Context }

// View acquires the surface image. It returns nil when the surface has
// no image this frame.
func (t drawTarget) View() hal.TextureView {
	v := t.SurfaceView()
	if v == nil {
		return nil
	}
	return v.HalTextureView()
}

// Device is the GPU device the application opened for the window.
type Device struct {
	Device hal.Device
	Queue  hal.Queue
	Info   gputypes.AdapterInfo
	Format gputypes.TextureFormat
}

// Device returns the application's device. It is available from the
// first frame on.
func (w *Window) Device() (Device, error) {
	if w.app == nil {
		return Device{}, ErrNoDevice
	}
	dp := w.app.DeviceProvider()
	if dp == nil || dp.Device() == nil {
		return Device{}, ErrNoDevice
	}
	d := Device{
		Device: dp.Device().HalDevice(),
		Queue:  dp.Device().HalQueue(),
		Format: dp.SurfaceFormat(),
	}
	if d.Device == nil || d.Queue == nil {
		return Device{}, ErrNoDevice
	}
	if a, ok := w.app.GPUContextProvider().Adapter().(*wgpu.Adapter); ok {
		d.Info = a.Info()
	}
	return d, nil
}
