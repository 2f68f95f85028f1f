//go:build !nogpu

// Package gputest provides noop-backed GPU fixtures for tests of the
// packages built on internal/gpu. Nothing here needs a GPU or a display.
package gputest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/tracer/internal/gpu"
)

// NewNoopContext opens a noop device and wraps it in a gpu.Context whose
// device is a Device and whose queue is a recording Queue. Both are torn
// down at test cleanup.
func NewNoopContext(t testing.TB) (*gpu.Context, *Queue) {
	t.Helper()
	ctx, q, _ := newContext(t)
	return ctx, q
}

// NewRecordingContext is NewNoopContext that also returns the Log every
// command encoder records into.
func NewRecordingContext(t testing.TB) (*gpu.Context, *Queue, *Log) {
	t.Helper()
	return newContext(t)
}

// DeviceOf returns the Device behind a context opened by this package.
func DeviceOf(ctx *gpu.Context) *Device {
	d, _ := ctx.Device().(*Device)
	return d
}

func newContext(t testing.TB) (*gpu.Context, *Queue, *Log) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("noop backend exposed no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}

	device := newDevice(openDev.Device)
	q := &Queue{Queue: openDev.Queue, device: device}
	info := adapters[0].Info
	info.DeviceType = gputypes.DeviceTypeDiscreteGPU
	ctx := gpu.NewContext(device, q, info)
	t.Cleanup(func() {
		_ = ctx.Close()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return ctx, q, device.Log
}

// Queue wraps a hal.Queue and records what reaches it. By default every
// submission completes immediately; with Hold set, completion only
// advances through Complete. WriteBuffer only accepts host-visible
// buffers.
type Queue struct {
	hal.Queue

	device *Device

	mu        sync.Mutex
	next      uint64
	completed uint64

	// Hold keeps submissions pending until Complete is called.
	Hold bool
	// Repeat makes the next Submit return the previous index again.
	Repeat bool
	// SubmitErr, when set, is returned by Submit.
	SubmitErr error

	submitted []uint64
}

// Submit records the submission and returns the next index.
func (q *Queue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.SubmitErr != nil {
		return 0, q.SubmitErr
	}
	if q.Repeat {
		q.Repeat = false
	} else {
		q.next++
	}
	q.submitted = append(q.submitted, q.next)
	if !q.Hold {
		q.completed = q.next
	}
	return q.next, nil
}

// PollCompleted returns the highest completed index.
func (q *Queue) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

// Complete marks every submission up to idx as finished.
func (q *Queue) Complete(idx uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if idx > q.completed {
		q.completed = idx
	}
}

// WriteBuffer fails with ErrNotMapped unless buf is host visible.
func (q *Queue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	if !q.device.Mappable(buf) {
		return fmt.Errorf("queue write at %d: %w", offset, ErrNotMapped)
	}
	return q.Queue.WriteBuffer(buf, offset, data)
}

// Submitted returns the indices handed out so far, in order.
func (q *Queue) Submitted() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uint64(nil), q.submitted...)
}
