//go:build !nogpu

// Package uniform hands out per-frame uniform slices from a fixed ring.
//
// All slices live in one host-visible uniform buffer, each at a 256-byte
// aligned offset, and are written through a mapping. A slice remembers the token of the submission that last read it
// and is only rewritten once that submission has completed, so the CPU
// never overwrites constants the GPU is still reading.
package uniform

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
)

// Alignment is the offset alignment of every slice. It matches the
// minimum uniform buffer offset alignment guaranteed by every backend.
const Alignment = 256

// DefaultSlices is the ring length used when none is configured.
const DefaultSlices = 3

var (
	// ErrNoSlices is returned when a pool is created with fewer than one slice.
	ErrNoSlices = errors.New("uniform: pool needs at least one slice")

	// ErrTooLarge is returned when data does not fit in one slice.
	ErrTooLarge = errors.New("uniform: data larger than slice")
)

// Slice is one region of the pool's buffer.
type Slice struct {
	// Index is the ring position, used to pick the matching bind group.
	Index int
	// Offset is the byte offset of the slice in the buffer.
	Offset uint64
	// Size is the usable size in bytes.
	Size uint64
}

// Pool is a ring of uniform slices. Not safe for concurrent use.
type Pool struct {
	gpu    *gpu.Context
	buffer hal.Buffer

	size   uint64
	stride uint64
	tokens []gpu.Token
	next   int
}

// New creates a pool of n slices of size bytes each.
func New(g *gpu.Context, n int, size uint64) (*Pool, error) {
	if n < 1 {
		return nil, ErrNoSlices
	}
	if size == 0 {
		return nil, fmt.Errorf("uniform: slice size must be positive")
	}
	stride := alignUp(size, Alignment)

	buf, err := g.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: "uniform_pool",
		Size:  stride * uint64(n),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageMapWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform: create buffer: %w", err)
	}

	gpu.Logger().Debug("uniform: pool created", "slices", n, "size", size, "stride", stride)
	return &Pool{
		gpu:    g,
		buffer: buf,
		size:   size,
		stride: stride,
		tokens: make([]gpu.Token, n),
	}, nil
}

// Next returns the next slice in the ring with data written to it. If the
// GPU may still be reading the slice, Next waits for the submission that
// last used it; ctx bounds that wait.
func (p *Pool) Next(ctx context.Context, data []byte) (Slice, error) {
	if uint64(len(data)) > p.size {
		return Slice{}, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), p.size)
	}

	idx := p.next
	if tok := p.tokens[idx]; !p.gpu.Completed(tok) {
		gpu.Logger().Debug("uniform: waiting for slice", "slice", idx, "token", uint64(tok))
		if err := p.gpu.Wait(ctx, tok); err != nil {
			return Slice{}, fmt.Errorf("uniform: wait for slice %d: %w", idx, err)
		}
	}

	s := p.Slice(idx)
	if err := gpu.WriteMapped(p.gpu.Device(), p.buffer, s.Offset, data); err != nil {
		return Slice{}, fmt.Errorf("uniform: write slice %d: %w", idx, err)
	}
	p.next = (idx + 1) % len(p.tokens)
	return s, nil
}

// Retire records that the submission tok reads s.
func (p *Pool) Retire(s Slice, tok gpu.Token) {
	p.tokens[s.Index] = tok
}

// Token returns the token that last read slice i.
func (p *Pool) Token(i int) gpu.Token { return p.tokens[i] }

// Slice returns the descriptor of slice i without touching its contents.
func (p *Pool) Slice(i int) Slice {
	return Slice{Index: i, Offset: uint64(i) * p.stride, Size: p.size}
}

// Len returns the number of slices.
func (p *Pool) Len() int { return len(p.tokens) }

// Buffer returns the backing uniform buffer.
func (p *Pool) Buffer() hal.Buffer { return p.buffer }

// Binding returns the bind group resource for slice i.
func (p *Pool) Binding(i int) gputypes.BufferBinding {
	s := p.Slice(i)
	return gputypes.BufferBinding{
		Buffer: p.buffer.NativeHandle(),
		Offset: s.Offset,
		Size:   s.Size,
	}
}

// Destroy releases the buffer. The caller must ensure the GPU is idle.
func (p *Pool) Destroy() {
	if p.buffer != nil {
		p.gpu.Device().DestroyBuffer(p.buffer)
		p.buffer = nil
	}
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}
