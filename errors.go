//go:build !nogpu

package tracer

import (
	"errors"

	"github.com/gogpu/tracer/internal/frame"
)

var (
	// ErrNoModel is returned by Run when no mesh path is given.
	ErrNoModel = errors.New("tracer: no model passed")

	// ErrFatal wraps GPU failures that end the render loop. Surface
	// invalidation is recovered internally and never surfaces as ErrFatal.
	ErrFatal = frame.ErrFatal
)
