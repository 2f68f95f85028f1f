// Package tracer is a real-time hybrid renderer for triangle meshes.
//
// # Overview
//
// Every frame a compute shader traces primary rays against the loaded
// mesh and writes the result into a shared GPU image. A raster pass then
// samples that image onto the swapchain and draws a text overlay with the
// adapter name and the current frame time. The window is navigated with
// WASD, Space and Left Shift plus mouse look.
//
// # Quick Start
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := tracer.Run(ctx, "bunny.obj", tracer.WithSize(1280, 720)); err != nil {
//	    log.Fatal(err)
//	}
//
// Run must be called from the main goroutine with the OS thread locked,
// because the window system requires it.
//
// # Architecture
//
// The package wires a set of internal packages:
//   - internal/gpu: device, queue, submission tokens, deferred release
//   - internal/surface: swapchain configuration and recreation
//   - internal/uniform: ring of per-frame uniform slices
//   - internal/compute, internal/raster: the two GPU stages
//   - internal/frame: the per-frame state machine
//   - internal/mesh, internal/camera, internal/input, internal/overlay,
//     internal/window, internal/pacing: scene, controls and display
//
// # Logging
//
// Nothing is logged by default. See [SetLogger].
package tracer
