//go:build !nogpu

// Package frame drives the render loop: it recreates the swapchain when it
// is invalidated, records one command buffer per frame from the compute,
// overlay and raster stages, chains submissions through GPU tokens and
// presents.
package frame

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/camera"
	"github.com/gogpu/tracer/internal/compute"
	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/input"
	"github.com/gogpu/tracer/internal/overlay"
	"github.com/gogpu/tracer/internal/pacing"
	"github.com/gogpu/tracer/internal/raster"
	"github.com/gogpu/tracer/internal/surface"
	"github.com/gogpu/tracer/internal/uniform"
)

var (
	// ErrFatal wraps every error that ends the render loop.
	ErrFatal = errors.New("frame: fatal GPU error")

	// ErrIncomplete is returned by New when a required component is nil.
	ErrIncomplete = errors.New("frame: incomplete configuration")
)

// Overlay text placement.
const (
	textSize    = 20
	textLeft    = 10
	deviceLineY = 20
	timingLineY = 45
)

var textColor = gputypes.Color{R: 1, G: 1, B: 1, A: 1}

// Window is the part of the platform window the loop needs. The window
// host dispatches events itself between frames.
type Window interface {
	surface.SizeSource
	ShouldClose() bool
	OnResize(fn func(width, height int))
}

// Config collects the components the orchestrator drives. All fields are
// required.
type Config struct {
	GPU     *gpu.Context
	Surface *surface.Manager
	Pool    *uniform.Pool
	Compute *compute.Stage
	Raster  *raster.Stage
	Overlay *overlay.Overlay
	Camera  *camera.Camera
	Input   *input.State
	Pacing  *pacing.Counter
	Window  Window
}

func (c Config) validate() error {
	switch {
	case c.GPU == nil:
		return fmt.Errorf("%w: no GPU context", ErrIncomplete)
	case c.Surface == nil:
		return fmt.Errorf("%w: no surface", ErrIncomplete)
	case c.Pool == nil:
		return fmt.Errorf("%w: no uniform pool", ErrIncomplete)
	case c.Compute == nil, c.Raster == nil, c.Overlay == nil:
		return fmt.Errorf("%w: missing stage", ErrIncomplete)
	case c.Camera == nil, c.Input == nil, c.Pacing == nil:
		return fmt.Errorf("%w: missing camera, input or pacing", ErrIncomplete)
	case c.Window == nil:
		return fmt.Errorf("%w: no window", ErrIncomplete)
	}
	return nil
}

// Orchestrator owns all frame state: the surface and framebuffer flags,
// the framebuffer set, the shared image and the latest submission token.
// It is driven from one goroutine.
type Orchestrator struct {
	cfg Config

	surfaceState State
	fbState      State
	phase        State

	fb    *raster.Framebuffers
	image *gpu.SharedImage
	token gpu.Token

	frames  uint64
	skipped uint64
	closing bool
	err     error
}

// New wires the orchestrator to cfg and subscribes to window resizes. The
// first Step configures the surface. The submission chain continues from
// the latest token, so uploads made while building the stages come first.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		cfg:          cfg,
		surfaceState: SurfaceDirty,
		fbState:      FramebuffersStale,
		phase:        Idle,
		token:        cfg.GPU.Last(),
	}
	cfg.Window.OnResize(func(int, int) { o.MarkDirty() })
	return o, nil
}

// MarkDirty schedules swapchain recreation before the next acquire.
func (o *Orchestrator) MarkDirty() { o.surfaceState = SurfaceDirty }

// SurfaceState returns SurfaceValid or SurfaceDirty.
func (o *Orchestrator) SurfaceState() State { return o.surfaceState }

// FramebufferState returns FramebuffersReady or FramebuffersStale.
func (o *Orchestrator) FramebufferState() State { return o.fbState }

// Phase returns the last phase reached by the current or previous Step.
func (o *Orchestrator) Phase() State { return o.phase }

// Token returns the token of the latest submission.
func (o *Orchestrator) Token() gpu.Token { return o.token }

// Framebuffers returns the current set, or nil while stale.
func (o *Orchestrator) Framebuffers() *raster.Framebuffers { return o.fb }

// Image returns the shared image, or nil before the first recreation.
func (o *Orchestrator) Image() *gpu.SharedImage { return o.image }

// Frames returns the number of presented frames.
func (o *Orchestrator) Frames() uint64 { return o.frames }

// Skipped returns the number of iterations that ended without submitting.
func (o *Orchestrator) Skipped() uint64 { return o.skipped }

// Closing reports whether the window asked to close.
func (o *Orchestrator) Closing() bool { return o.closing }

// Frame runs one Step for a loop driven by the window host. It reports
// false once the loop should stop: the window is closing, ctx is done or
// the GPU failed. Cancellation is a clean exit; a fatal error, wrapped
// with ErrFatal, is kept for Err.
func (o *Orchestrator) Frame(ctx context.Context) bool {
	if o.closing || o.err != nil || ctx.Err() != nil {
		return false
	}
	if err := o.Step(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return false
		}
		gpu.Logger().Error("frame: render loop stopped", "err", err)
		o.err = err
		return false
	}
	if o.closing {
		gpu.Logger().Debug("frame: window closed", "frames", o.frames, "skipped", o.skipped)
		return false
	}
	return true
}

// Err returns the fatal error that stopped Frame, if any.
func (o *Orchestrator) Err() error { return o.err }

// Step runs one loop iteration. It returns ctx's error if ctx ends while
// waiting for a uniform slice, and an ErrFatal error when the GPU fails.
func (o *Orchestrator) Step(ctx context.Context) error {
	o.phase = Idle
	o.cfg.GPU.Reclaim()
	o.cfg.Pacing.EndFrame()

	if o.surfaceState == SurfaceDirty {
		ok, err := o.recreate()
		if err != nil {
			return err
		}
		if !ok {
			gpu.Logger().Warn("frame: surface recreation failed, retrying")
			o.skip()
			return nil
		}
	}

	if o.fbState == FramebuffersStale {
		o.fb.Destroy()
		o.fb = o.cfg.Raster.NewFramebuffers(o.cfg.Surface.Generation())
		o.fbState = FramebuffersReady
	}

	f, err := o.cfg.Surface.Acquire()
	switch {
	case err == nil:
	case errors.Is(err, surface.ErrOutOfDate):
		o.MarkDirty()
		o.skip()
		return nil
	case errors.Is(err, surface.ErrNotReady):
		gpu.Logger().Warn("frame: no swapchain image ready, frame skipped")
		o.skip()
		return nil
	default:
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	o.phase = Acquired

	if err := o.render(ctx, f); err != nil {
		o.cfg.Surface.Discard(f)
		return err
	}

	err = o.cfg.Surface.Present(f)
	switch {
	case err == nil:
		o.phase = Presented
		o.frames++
		if f.Suboptimal {
			o.MarkDirty()
		}
	case errors.Is(err, surface.ErrOutOfDate):
		o.MarkDirty()
	default:
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}

	o.queueText()
	o.moveCamera()
	o.checkClose()
	return nil
}

// recreate reconfigures the swapchain and makes the shared image and the
// stage bindings follow its extent. It reports false when the surface
// could not be configured.
func (o *Orchestrator) recreate() (bool, error) {
	if !o.cfg.Surface.Recreate(o.cfg.Window) {
		return false, nil
	}
	o.surfaceState = SurfaceValid
	o.fbState = FramebuffersStale

	w, h := o.cfg.Surface.Extent()
	if o.image != nil && o.image.Matches(w, h) {
		return true, nil
	}

	img, err := o.cfg.GPU.NewSharedImage(w, h, o.cfg.Surface.Generation())
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := o.cfg.Compute.Bind(img); err != nil {
		img.Destroy()
		return false, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := o.cfg.Raster.Bind(img); err != nil {
		img.Destroy()
		return false, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if old := o.image; old != nil {
		o.cfg.GPU.Release(old.Destroy)
	}
	o.image = img
	return true, nil
}

// render writes the frame's uniform slice, records the command buffer and
// submits it after the previous token.
func (o *Orchestrator) render(ctx context.Context, f surface.Frame) error {
	view, err := o.fb.View(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}

	w, h := o.cfg.Surface.Extent()
	u := o.cfg.Camera.Uniform(w, h, o.cfg.Compute.Triangles())
	slice, err := o.cfg.Pool.Next(ctx, u.Bytes())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}

	enc, err := o.cfg.GPU.Encoder("frame")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if err := o.record(enc, slice, view, w, h); err != nil {
		enc.DiscardEncoding()
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	cb, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("%w: end encoding: %w", ErrFatal, err)
	}

	tok, err := o.cfg.GPU.Submit(cb, o.token)
	if err != nil {
		if !errors.Is(err, gpu.ErrTokenRegressed) {
			// Not queued, so still ours.
			o.cfg.GPU.Device().FreeCommandBuffer(cb)
		}
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	o.token = tok
	o.cfg.Pool.Retire(slice, tok)
	o.phase = Submitted
	return nil
}

func (o *Orchestrator) record(enc hal.CommandEncoder, slice uniform.Slice, view hal.TextureView, w, h uint32) error {
	if err := o.cfg.Compute.Encode(enc, slice.Index); err != nil {
		return err
	}
	if err := o.cfg.Overlay.Update(enc, w, h); err != nil {
		return err
	}
	pass, err := o.cfg.Raster.Begin(enc, view, w, h)
	if err != nil {
		return err
	}
	o.cfg.Overlay.Draw(pass, w, h)
	pass.End()
	return nil
}

func (o *Orchestrator) queueText() {
	fps := o.cfg.Pacing.CurrentFPS()
	ms := o.cfg.Pacing.FrameTimeMillis()
	o.cfg.Overlay.Queue(textLeft, deviceLineY, textSize, textColor, "Using device: "+o.cfg.GPU.Name())
	o.cfg.Overlay.Printf(textLeft, timingLineY, textSize, textColor, "Render time: %d ms (%d FPS)", ms, fps)
}

func (o *Orchestrator) moveCamera() {
	dt := float32(o.cfg.Pacing.FrameTimeMillis()) / 1000
	o.cfg.Camera.Update(o.cfg.Input, dt)
	o.cfg.Camera.Rotate(o.cfg.Input.FetchDelta())
}

// skip ends an iteration that did not submit. A close request still ends
// the loop.
func (o *Orchestrator) skip() {
	o.skipped++
	o.checkClose()
}

func (o *Orchestrator) checkClose() {
	if o.cfg.Window.ShouldClose() {
		o.closing = true
	}
}

// Shutdown waits for the latest submission and destroys the framebuffer
// set and the shared image. Stages, surface and device are owned by the
// caller.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	err := o.cfg.GPU.Wait(ctx, o.token)
	o.fb.Destroy()
	o.fb = nil
	o.fbState = FramebuffersStale
	if err == nil && o.image != nil {
		o.image.Destroy()
		o.image = nil
	}
	o.cfg.GPU.Reclaim()
	return err
}
