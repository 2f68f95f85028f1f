//go:build !nogpu

package tracer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/mesh"
	"github.com/gogpu/tracer/internal/surface"
	"github.com/gogpu/tracer/internal/window"
)

func init() {
	loggerSinks = append(loggerSinks, gpu.SetLogger)
}

// Run loads the mesh at meshPath, opens a window and renders until the
// window is closed or ctx is cancelled. Both are clean exits. GPU
// failures are returned wrapped with ErrFatal; startup failures are
// returned as they are.
//
// Run must be called from the main goroutine with the OS thread locked.
// Frames are rendered on the window's render thread.
func Run(ctx context.Context, meshPath string, opts ...Option) error {
	if meshPath == "" {
		return ErrNoModel
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	m, err := mesh.Load(meshPath)
	if err != nil {
		return err
	}
	logMesh(ctx, m)

	win := window.New(window.Config{
		Width:       o.width,
		Height:      o.height,
		Title:       o.title,
		GraphicsAPI: o.graphicsAPI,
		PresentMode: o.presentMode,
	})
	return run(ctx, win, m, o)
}

// run renders into win until the loop ends. The renderer is built on the
// first frame, once the window has opened its device, and closed while
// the device is still alive.
func run(ctx context.Context, win loopHost, m *mesh.Mesh, o options) error {
	var (
		r        *renderer
		buildErr error
		closeErr error
		once     sync.Once
	)
	shutdown := func() {
		if r != nil {
			once.Do(func() { closeErr = r.close() })
		}
	}
	win.OnClose(shutdown)
	loopErr := win.Loop(func() bool {
		if r == nil {
			if r, buildErr = newRenderer(win, m, o); buildErr != nil {
				return false
			}
		}
		return r.frame(ctx)
	})
	shutdown()

	switch {
	case buildErr != nil:
		return buildErr
	case r != nil && r.err() != nil:
		return r.err()
	case loopErr != nil:
		return fmt.Errorf("tracer: window loop: %w", loopErr)
	}
	return closeErr
}

// loopHost is a host that drives the frame loop itself.
type loopHost interface {
	host
	Loop(frame func() bool) error
	OnClose(fn func())
}

// logMesh writes every uploaded vertex and triangle at debug level.
func logMesh(ctx context.Context, m *mesh.Mesh) {
	l := Logger()
	l.Info("mesh loaded", "name", m.Name, "vertices", m.Vertices(), "triangles", m.Triangles())
	if !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	for i := 0; i < m.Vertices(); i++ {
		v := m.Vertex(i)
		l.Debug("mesh vertex", "index", i, "x", v[0], "y", v[1], "z", v[2])
	}
	for i := 0; i < m.Triangles(); i++ {
		t := m.Triangle(i)
		l.Debug("mesh triangle", "index", i, "a", t[0], "b", t[1], "c", t[2])
	}
}

// ParseBackend maps a backend name such as "vulkan" to a graphics API
// available on this platform. The empty name selects automatically.
func ParseBackend(name string) (types.GraphicsAPI, error) {
	return gpu.ParseBackend(name)
}

// Backends lists the backend names ParseBackend accepts on this platform.
func Backends() []string {
	return gpu.Backends()
}

// ParsePresentMode maps a name such as "mailbox" to a present mode.
func ParsePresentMode(name string) (hal.PresentMode, error) {
	return surface.ParsePresentMode(name)
}
