// Command tracer renders a Wavefront OBJ mesh with a compute ray tracer.
//
// Usage:
//
//	tracer [flags] model.obj
//
// Move with WASD, Space and Left Shift; look around with the mouse.
// Escape releases the cursor, a second Escape quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/gogpu/tracer"
)

func init() {
	// The platform window must run on the main thread.
	runtime.LockOSThread()
}

func main() {
	var (
		width   = flag.Int("width", tracer.DefaultWidth, "initial window width")
		height  = flag.Int("height", tracer.DefaultHeight, "initial window height")
		backend = flag.String("backend", "auto", "GPU backend: "+strings.Join(tracer.Backends(), ", "))
		present = flag.String("present", "fifo", "present mode: fifo, relaxed, mailbox or immediate")
		slices  = flag.Int("slices", tracer.DefaultSlices, "uniform slices, the number of frames in flight")
		fov     = flag.Float64("fov", tracer.DefaultFOV, "field of view in degrees")
		level   = flag.String("log", "warn", "log level: debug, info, warn or error")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] model.obj\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		panic("no model passed")
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(*level)); err != nil {
		fmt.Fprintf(os.Stderr, "tracer: -log: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	tracer.SetLogger(logger)

	b, err := tracer.ParseBackend(*backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracer: -backend: %v\n", err)
		os.Exit(2)
	}
	pm, err := tracer.ParsePresentMode(*present)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracer: -present: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tracer.Run(ctx, flag.Arg(0),
		tracer.WithSize(*width, *height),
		tracer.WithBackend(b),
		tracer.WithPresentMode(pm),
		tracer.WithUniformSlices(*slices),
		tracer.WithFOV(float32(*fov), float32(*fov)),
	)
	if err != nil {
		logger.Error("tracer failed", "err", err)
		stop()
		os.Exit(1)
	}
}
