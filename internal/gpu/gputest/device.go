//go:build !nogpu

package gputest

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNotMapped is returned by Queue.WriteBuffer for buffers the host
// cannot see.
var ErrNotMapped = errors.New("gputest: buffer is not mapped")

// Device wraps a noop hal.Device with the host-visibility rules of a real
// discrete GPU: only buffers created with MapRead, MapWrite or
// MappedAtCreation can be mapped or written from the CPU. Every command
// encoder it creates records into Log.
type Device struct {
	hal.Device
	Log *Log

	mu       sync.Mutex
	mappable map[hal.Buffer]bool
	buffers  int
}

func newDevice(d hal.Device) *Device {
	return &Device{Device: d, Log: &Log{}, mappable: make(map[hal.Buffer]bool)}
}

// CreateBuffer remembers whether the buffer is host visible.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	buf, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	host := desc.MappedAtCreation ||
		desc.Usage&(gputypes.BufferUsageMapRead|gputypes.BufferUsageMapWrite) != 0
	d.mu.Lock()
	d.mappable[buf] = host
	d.buffers++
	d.mu.Unlock()
	return buf, nil
}

// DestroyBuffer forgets the buffer.
func (d *Device) DestroyBuffer(buf hal.Buffer) {
	d.mu.Lock()
	if _, ok := d.mappable[buf]; ok {
		delete(d.mappable, buf)
		d.buffers--
	}
	d.mu.Unlock()
	d.Device.DestroyBuffer(buf)
}

// MapBuffer rejects buffers that are not host visible.
func (d *Device) MapBuffer(buf hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	if !d.Mappable(buf) {
		return hal.BufferMapping{}, fmt.Errorf("%w: %w", hal.ErrInvalidMapRange, ErrNotMapped)
	}
	return d.Device.MapBuffer(buf, offset, size)
}

// Mappable reports whether buf was created host visible.
func (d *Device) Mappable(buf hal.Buffer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mappable[buf]
}

// Live returns the number of buffers created and not yet destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers
}

// Contents returns a copy of n bytes of buf, bypassing host visibility.
func (d *Device) Contents(buf hal.Buffer, n int) []byte {
	m, err := d.Device.MapBuffer(buf, 0, uint64(n))
	if err != nil {
		return nil
	}
	return append([]byte(nil), unsafe.Slice((*byte)(m.Ptr), n)...)
}

// CreateCommandEncoder wraps the encoder in a Recorder.
func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &Recorder{CommandEncoder: enc, Log: d.Log, mem: d.Device}, nil
}

// copyBytes carries out a buffer copy on noop storage.
func copyBytes(mem hal.Device, src, dst hal.Buffer, rg hal.BufferCopy) {
	if rg.Size == 0 {
		return
	}
	from, err := mem.MapBuffer(src, rg.SrcOffset, rg.Size)
	if err != nil {
		return
	}
	to, err := mem.MapBuffer(dst, rg.DstOffset, rg.Size)
	if err != nil {
		return
	}
	copy(unsafe.Slice((*byte)(to.Ptr), rg.Size), unsafe.Slice((*byte)(from.Ptr), rg.Size))
}
