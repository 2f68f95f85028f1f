//go:build !nogpu

// Package raster draws the traced image onto the swapchain with a
// fullscreen quad and owns the per-image render targets.
package raster

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

// ErrNotBound is returned by Begin before Bind has been called.
var ErrNotBound = errors.New("raster: stage has no image bound")

// DefaultClearColor is opaque blue.
var DefaultClearColor = gputypes.Color{R: 0, G: 0, B: 1, A: 1}

// quadVertexStride is position (vec2<f32>) + uv (vec2<f32>).
const quadVertexStride = 16

// quadVertices covers clip space with two triangles. UV (0,0) is the top
// left texel of the traced image.
var quadVertices = []float32{
	-1, -1, 0, 1,
	1, -1, 1, 1,
	1, 1, 1, 0,
	-1, -1, 0, 1,
	1, 1, 1, 0,
	-1, 1, 0, 0,
}

// QuadVertexCount is the number of vertices drawn per frame.
const QuadVertexCount = 6

// Stage owns the blit pipeline and the bind group that samples the
// shared image.
type Stage struct {
	gpu    *gpu.Context
	format gputypes.TextureFormat
	clear  gputypes.Color

	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.RenderPipeline
	sampler        hal.Sampler
	vertices       hal.Buffer

	group  hal.BindGroup
	builds int
}

// New creates the pipeline for swapchain images of the given format. The
// pipeline is never rebuilt on resize; only the bind group and the
// framebuffers follow the surface.
func New(g *gpu.Context, format gputypes.TextureFormat, clear gputypes.Color) (*Stage, error) {
	s := &Stage{gpu: g, format: format, clear: clear}
	if err := s.createPipeline(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.uploadQuad(); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Stage) createPipeline() error {
	device := s.gpu.Device()

	shader, err := s.gpu.CreateShaderModule("blit", blitShaderSource)
	if err != nil {
		return fmt.Errorf("raster: %w", err)
	}
	s.shader = shader

	// Binding 0: traced image (texture_2d, fragment)
	// Binding 1: sampler (fragment)
	s.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("raster: create bind group layout: %w", err)
	}

	s.pipelineLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("raster: create pipeline layout: %w", err)
	}

	s.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "blit_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("raster: create sampler: %w", err)
	}

	s.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "blit_pipeline",
		Layout: s.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     s.shader,
			EntryPoint: "vs_main",
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     s.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    s.format,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("raster: create pipeline: %w", err)
	}
	return nil
}

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: quadVertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
		},
	}}
}

func (s *Stage) uploadQuad() error {
	data := make([]byte, 4*len(quadVertices))
	for i, f := range quadVertices {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}

	buf, err := s.gpu.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: "blit_quad",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("raster: create quad buffer: %w", err)
	}
	s.vertices = buf
	err = s.gpu.Upload("blit_quad_upload", func(enc hal.CommandEncoder) error {
		return s.gpu.CopyToBuffer(enc, buf, 0, data, gputypes.BufferUsageVertex)
	})
	if err != nil {
		return fmt.Errorf("raster: upload quad: %w", err)
	}
	return nil
}

// Bind points the stage at img's sampled view. The previous bind group is
// released once the GPU is done with it.
func (s *Stage) Bind(img *gpu.SharedImage) error {
	bg, err := s.gpu.Device().CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "blit_bind",
		Layout: s.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: img.SampledView().NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: s.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("raster: create bind group: %w", err)
	}

	if old := s.group; old != nil {
		device := s.gpu.Device()
		s.gpu.Release(func() { device.DestroyBindGroup(old) })
	}
	s.group = bg
	return nil
}

// Format returns the color target format.
func (s *Stage) Format() gputypes.TextureFormat { return s.format }

// Builds returns how many framebuffer sets were created.
func (s *Stage) Builds() int { return s.builds }

// Begin starts the render pass on view, clears it and draws the
// fullscreen quad with a viewport covering width×height. The caller
// records overlay draws into the returned pass and ends it.
func (s *Stage) Begin(enc hal.CommandEncoder, view hal.TextureView, width, height uint32) (hal.RenderPassEncoder, error) {
	if s.group == nil {
		return nil, ErrNotBound
	}

	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: s.clear,
		}},
	})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.group, nil)
	pass.SetVertexBuffer(0, s.vertices, 0)
	pass.SetViewport(0, 0, float32(width), float32(height), 0, 1)
	pass.Draw(QuadVertexCount, 1, 0, 0)
	return pass, nil
}

// Destroy releases every GPU object. The device must be idle.
func (s *Stage) Destroy() {
	device := s.gpu.Device()
	if device == nil {
		return
	}
	if s.group != nil {
		device.DestroyBindGroup(s.group)
		s.group = nil
	}
	if s.vertices != nil {
		device.DestroyBuffer(s.vertices)
		s.vertices = nil
	}
	if s.pipeline != nil {
		device.DestroyRenderPipeline(s.pipeline)
		s.pipeline = nil
	}
	if s.sampler != nil {
		device.DestroySampler(s.sampler)
		s.sampler = nil
	}
	if s.pipelineLayout != nil {
		device.DestroyPipelineLayout(s.pipelineLayout)
		s.pipelineLayout = nil
	}
	if s.bindLayout != nil {
		device.DestroyBindGroupLayout(s.bindLayout)
		s.bindLayout = nil
	}
	if s.shader != nil {
		device.DestroyShaderModule(s.shader)
		s.shader = nil
	}
}
