//go:build !nogpu

package tracer

import (
	"context"
	"errors"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/tracer/internal/camera"
	"github.com/gogpu/tracer/internal/compute"
	"github.com/gogpu/tracer/internal/frame"
	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/input"
	"github.com/gogpu/tracer/internal/mesh"
	"github.com/gogpu/tracer/internal/overlay"
	"github.com/gogpu/tracer/internal/pacing"
	"github.com/gogpu/tracer/internal/raster"
	"github.com/gogpu/tracer/internal/surface"
	"github.com/gogpu/tracer/internal/uniform"
	"github.com/gogpu/tracer/internal/window"
)

// shutdownTimeout bounds the wait for the last submission on exit.
const shutdownTimeout = 5 * time.Second

// host is the window as seen by the renderer. It owns the device and
// the swapchain; the renderer only borrows them.
type host interface {
	frame.Window
	gpucontext.EventSource
	OnCapture(fn func(captured bool))
	Device() (window.Device, error)
	Swapchain() surface.Swapchain
}

// renderer owns every GPU object of a run. Fields are filled in creation
// order and torn down in reverse by close.
type renderer struct {
	gpu     *gpu.Context
	surface *surface.Manager
	pool    *uniform.Pool
	compute *compute.Stage
	raster  *raster.Stage
	overlay *overlay.Overlay
	orch    *frame.Orchestrator
}

func newRenderer(win host, m *mesh.Mesh, o options) (*renderer, error) {
	r := &renderer{}
	if err := r.build(win, m, o); err != nil {
		_ = r.close()
		return nil, err
	}
	return r, nil
}

func (r *renderer) build(win host, m *mesh.Mesh, o options) error {
	if err := r.openDevice(win, o); err != nil {
		return err
	}

	var err error
	r.pool, err = uniform.New(r.gpu, o.slices, compute.ConstantsSize)
	if err != nil {
		return err
	}
	r.compute, err = compute.New(r.gpu, r.pool, m.Positions, m.Indices)
	if err != nil {
		return err
	}
	r.raster, err = raster.New(r.gpu, r.surface.Format(), o.clearColor)
	if err != nil {
		return err
	}
	r.overlay, err = overlay.New(r.gpu.Provider(), r.gpu,
		overlay.WithFont(o.font),
		overlay.WithAtlasSize(o.atlasSize))
	if err != nil {
		return err
	}

	in := input.New()
	in.Attach(win)
	win.OnCapture(func(bool) { in.ResetPointer() })

	r.orch, err = frame.New(frame.Config{
		GPU:     r.gpu,
		Surface: r.surface,
		Pool:    r.pool,
		Compute: r.compute,
		Raster:  r.raster,
		Overlay: r.overlay,
		Camera:  camera.New(o.fovX, o.fovY),
		Input:   in,
		Pacing:  pacing.New(pacing.WithWindow(o.fpsWindow)),
		Window:  win,
	})
	return err
}

// openDevice wraps the window's device and its swapchain.
func (r *renderer) openDevice(win host, o options) error {
	dev, err := win.Device()
	if err != nil {
		return err
	}
	r.gpu = gpu.NewContext(dev.Device, dev.Queue, dev.Info)
	r.surface, err = surface.New(r.gpu, win.Swapchain(), surface.Config{
		PresentMode: o.presentMode,
	})
	return err
}

// frame renders one frame and reports whether the loop should go on.
func (r *renderer) frame(ctx context.Context) bool {
	return r.orch.Frame(ctx)
}

// err returns the error that ended the render loop.
func (r *renderer) err() error {
	return r.orch.Err()
}

// close waits for the GPU and destroys everything in reverse creation
// order, so every deferred release has run before the swapchain goes. It
// tolerates a partially built renderer.
func (r *renderer) close() error {
	var errs []error
	if r.orch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		errs = append(errs, r.orch.Shutdown(ctx))
		cancel()
	}
	if r.gpu != nil {
		errs = append(errs, r.gpu.WaitIdle())
	}
	if r.overlay != nil {
		r.overlay.Destroy()
	}
	if r.raster != nil {
		r.raster.Destroy()
	}
	if r.compute != nil {
		r.compute.Destroy()
	}
	if r.pool != nil {
		r.pool.Destroy()
	}
	if r.surface != nil {
		r.surface.Destroy()
	}
	if r.gpu != nil {
		errs = append(errs, r.gpu.Close())
	}
	return errors.Join(errs...)
}
