//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Only buffers created with BufferUsageMapWrite (or MappedAtCreation) are
// host visible. Everything else lives in device-local memory and is filled
// by a copy from a staging buffer recorded into a command encoder.

// StagingUsage is the usage of staging buffers.
const StagingUsage = gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite

// WriteMapped copies data into buf at offset through a mapping and flushes
// it. buf must be mappable for writing.
func WriteMapped(device hal.Device, buf hal.Buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	m, err := device.MapBuffer(buf, offset, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("gpu: map buffer: %w", err)
	}
	copy(unsafe.Slice((*byte)(m.Ptr), len(data)), data)
	if err := device.UnmapBuffer(buf); err != nil {
		return fmt.Errorf("gpu: unmap buffer: %w", err)
	}
	return nil
}

// NewStagingBuffer creates a host-visible copy source holding data. The
// caller destroys it once the copy has executed.
func NewStagingBuffer(device hal.Device, label string, data []byte) (hal.Buffer, error) {
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: StagingUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s: %w", label, err)
	}
	if err := WriteMapped(device, buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("gpu: fill %s: %w", label, err)
	}
	return buf, nil
}

// CopyToBuffer records a copy of data into dst at offset, followed by a
// barrier that hands dst to readers of usage. The staging buffer is
// released once the next submission has completed.
func (c *Context) CopyToBuffer(enc hal.CommandEncoder, dst hal.Buffer, offset uint64, data []byte, usage gputypes.BufferUsage) error {
	if len(data) == 0 {
		return nil
	}
	if c.closed {
		return ErrClosed
	}
	staging, err := NewStagingBuffer(c.device, "upload_staging", data)
	if err != nil {
		return err
	}
	device := c.device
	c.Release(func() { device.DestroyBuffer(staging) })

	enc.CopyBufferToBuffer(staging, dst, []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: offset,
		Size:      uint64(len(data)),
	}})
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: dst,
		Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageCopyDst,
			NewUsage: usage,
		},
	}})
	return nil
}

// Upload records uploads with record into a one-off command buffer and
// submits it after the latest token. Submissions that follow see the
// uploaded data; nothing waits for it on the CPU.
func (c *Context) Upload(label string, record func(enc hal.CommandEncoder) error) error {
	enc, err := c.Encoder(label)
	if err != nil {
		return err
	}
	if err := record(enc); err != nil {
		enc.DiscardEncoding()
		return err
	}
	cb, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding %s: %w", label, err)
	}
	if _, err := c.Submit(cb, c.last); err != nil {
		if !errors.Is(err, ErrTokenRegressed) {
			c.device.FreeCommandBuffer(cb)
		}
		return err
	}
	Logger().Debug("gpu: upload submitted", "label", label, "token", uint64(c.last))
	return nil
}
