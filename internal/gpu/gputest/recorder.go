//go:build !nogpu

package gputest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Log collects the operations recorded into command encoders, in order.
type Log struct {
	mu  sync.Mutex
	ops []string
}

func (l *Log) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, fmt.Sprintf(format, args...))
}

// Ops returns a copy of the recorded operations.
func (l *Log) Ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

// Reset clears the log.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = nil
}

// Filter returns the operations starting with one of prefixes.
func (l *Log) Filter(prefixes ...string) []string {
	var out []string
	for _, op := range l.Ops() {
		for _, p := range prefixes {
			if strings.HasPrefix(op, p) {
				out = append(out, op)
				break
			}
		}
	}
	return out
}

// Recorder wraps a hal.CommandEncoder and logs the calls the renderer
// makes.
type Recorder struct {
	hal.CommandEncoder
	Log *Log

	// mem backs buffer copies so device-local contents can be read back.
	mem hal.Device
}

func (r *Recorder) BeginEncoding(label string) error {
	r.Log.add("begin_encoding %s", label)
	return r.CommandEncoder.BeginEncoding(label)
}

func (r *Recorder) EndEncoding() (hal.CommandBuffer, error) {
	r.Log.add("end_encoding")
	return r.CommandEncoder.EndEncoding()
}

func (r *Recorder) DiscardEncoding() {
	r.Log.add("discard_encoding")
	r.CommandEncoder.DiscardEncoding()
}

func (r *Recorder) TransitionTextures(barriers []hal.TextureBarrier) {
	for _, b := range barriers {
		r.Log.add("transition %s", usageName(b.Usage.NewUsage))
	}
	r.CommandEncoder.TransitionTextures(barriers)
}

func (r *Recorder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	r.Log.add("copy_buffer_to_buffer %d", len(regions))
	if r.mem != nil {
		for _, rg := range regions {
			copyBytes(r.mem, src, dst, rg)
		}
	}
	r.CommandEncoder.CopyBufferToBuffer(src, dst, regions)
}

func (r *Recorder) TransitionBuffers(barriers []hal.BufferBarrier) {
	for _, b := range barriers {
		r.Log.add("transition_buffer %s", bufferUsageName(b.Usage.NewUsage))
	}
	r.CommandEncoder.TransitionBuffers(barriers)
}

func (r *Recorder) CopyBufferToTexture(src hal.Buffer, dst hal.Texture, regions []hal.BufferTextureCopy) {
	r.Log.add("copy_buffer_to_texture %d", len(regions))
	r.CommandEncoder.CopyBufferToTexture(src, dst, regions)
}

func (r *Recorder) BeginComputePass(desc *hal.ComputePassDescriptor) hal.ComputePassEncoder {
	r.Log.add("compute.begin %s", desc.Label)
	return &computePass{ComputePassEncoder: r.CommandEncoder.BeginComputePass(desc), log: r.Log}
}

func (r *Recorder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	clear := gputypes.Color{}
	if len(desc.ColorAttachments) > 0 {
		clear = desc.ColorAttachments[0].ClearValue
	}
	r.Log.add("render.begin %s clear=%g,%g,%g,%g", desc.Label, clear.R, clear.G, clear.B, clear.A)
	return &renderPass{RenderPassEncoder: r.CommandEncoder.BeginRenderPass(desc), log: r.Log}
}

type computePass struct {
	hal.ComputePassEncoder
	log *Log
}

func (p *computePass) SetBindGroup(i uint32, g hal.BindGroup, offsets []uint32) {
	p.log.add("compute.bind %d", i)
	p.ComputePassEncoder.SetBindGroup(i, g, offsets)
}

func (p *computePass) Dispatch(x, y, z uint32) {
	p.log.add("compute.dispatch %d %d %d", x, y, z)
	p.ComputePassEncoder.Dispatch(x, y, z)
}

func (p *computePass) End() {
	p.log.add("compute.end")
	p.ComputePassEncoder.End()
}

type renderPass struct {
	hal.RenderPassEncoder
	log *Log
}

func (p *renderPass) SetPipeline(pl hal.RenderPipeline) {
	p.log.add("render.pipeline")
	p.RenderPassEncoder.SetPipeline(pl)
}

func (p *renderPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.log.add("render.viewport %g %g %g %g", x, y, w, h)
	p.RenderPassEncoder.SetViewport(x, y, w, h, minDepth, maxDepth)
}

func (p *renderPass) Draw(vertices, instances, firstVertex, firstInstance uint32) {
	p.log.add("render.draw %d %d", vertices, instances)
	p.RenderPassEncoder.Draw(vertices, instances, firstVertex, firstInstance)
}

func (p *renderPass) End() {
	p.log.add("render.end")
	p.RenderPassEncoder.End()
}

func usageName(u gputypes.TextureUsage) string {
	switch u {
	case gputypes.TextureUsageStorageBinding:
		return "storage"
	case gputypes.TextureUsageTextureBinding:
		return "sampled"
	case gputypes.TextureUsageCopyDst:
		return "copy_dst"
	case gputypes.TextureUsageCopySrc:
		return "copy_src"
	case gputypes.TextureUsageRenderAttachment:
		return "render_attachment"
	default:
		return fmt.Sprintf("usage(%d)", uint64(u))
	}
}

func bufferUsageName(u gputypes.BufferUsage) string {
	switch u {
	case gputypes.BufferUsageStorage:
		return "storage"
	case gputypes.BufferUsageVertex:
		return "vertex"
	case gputypes.BufferUsageUniform:
		return "uniform"
	case gputypes.BufferUsageCopyDst:
		return "copy_dst"
	default:
		return fmt.Sprintf("usage(%d)", uint64(u))
	}
}
