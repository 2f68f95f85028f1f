//go:build !nogpu

// Package compute implements the ray tracing stage: a compute pipeline
// that intersects primary rays with the uploaded triangle soup and
// writes one RGBA8 texel per invocation into the shared image.
package compute

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/uniform"
)

//go:embed shaders/trace.wgsl
var traceShaderSource string

// WorkgroupSize is the edge length of the square workgroup declared by
// the shader.
const WorkgroupSize = 16

// ConstantsSize is the byte size of the shader's Constants block.
const ConstantsSize = 80

// ErrNotBound is returned by Encode before Bind has been called.
var ErrNotBound = errors.New("compute: stage has no image bound")

// DispatchSize returns the workgroup counts covering a w×h image.
func DispatchSize(w, h uint32) (x, y, z uint32) {
	return (w + WorkgroupSize - 1) / WorkgroupSize, (h + WorkgroupSize - 1) / WorkgroupSize, 1
}

// Stage owns the compute pipeline, the geometry buffers and one bind
// group per uniform slice.
type Stage struct {
	gpu  *gpu.Context
	pool *uniform.Pool

	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.ComputePipeline

	positions     hal.Buffer
	positionsSize uint64
	indices       hal.Buffer
	indicesSize   uint64
	triangles     uint32

	image    *gpu.SharedImage
	groups   []hal.BindGroup
	dispatch [3]uint32
}

// New builds the pipeline and uploads the geometry once. positions holds
// xyz triples; indices holds one triple per triangle.
func New(g *gpu.Context, pool *uniform.Pool, positions []float32, indices []uint32) (*Stage, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("compute: index count %d is not a multiple of 3", len(indices))
	}

	s := &Stage{
		gpu:       g,
		pool:      pool,
		triangles: uint32(len(indices) / 3),
	}
	if err := s.createPipeline(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := s.uploadGeometry(positions, indices); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Stage) createPipeline() error {
	device := s.gpu.Device()

	shader, err := s.gpu.CreateShaderModule("trace", traceShaderSource)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	s.shader = shader

	s.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "trace_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, StorageTexture: &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessWriteOnly,
				Format:        gpu.SharedImageFormat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: ConstantsSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("compute: create bind group layout: %w", err)
	}

	s.pipelineLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "trace_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{s.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("compute: create pipeline layout: %w", err)
	}

	s.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "trace_pipeline",
		Layout:  s.pipelineLayout,
		Compute: hal.ComputeState{Module: s.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("compute: create pipeline: %w", err)
	}
	return nil
}

func (s *Stage) uploadGeometry(positions []float32, indices []uint32) error {
	posData, idxData := float32Bytes(positions), uint32Bytes(indices)

	var err error
	s.positions, s.positionsSize, err = s.storageBuffer("trace_positions", len(posData))
	if err != nil {
		return err
	}
	s.indices, s.indicesSize, err = s.storageBuffer("trace_indices", len(idxData))
	if err != nil {
		return err
	}

	// One submission carries both copies; the first dispatch follows it
	// on the same queue.
	err = s.gpu.Upload("trace_geometry_upload", func(enc hal.CommandEncoder) error {
		if err := s.gpu.CopyToBuffer(enc, s.positions, 0, posData, gputypes.BufferUsageStorage); err != nil {
			return err
		}
		return s.gpu.CopyToBuffer(enc, s.indices, 0, idxData, gputypes.BufferUsageStorage)
	})
	if err != nil {
		return fmt.Errorf("compute: upload geometry: %w", err)
	}
	gpu.Logger().Debug("compute: geometry uploaded",
		"vertices", len(positions)/3,
		"triangles", s.triangles)
	return nil
}

// storageBuffer creates a device-local read-only storage buffer for n
// bytes. Empty data still gets a minimal buffer because zero-sized
// bindings are invalid.
func (s *Stage) storageBuffer(label string, n int) (hal.Buffer, uint64, error) {
	size := uint64(n)
	if size < 16 {
		size = 16
	}
	size = (size + 3) &^ 3

	buf, err := s.gpu.Device().CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("compute: create %s: %w", label, err)
	}
	return buf, size, nil
}

// Bind rebuilds the per-slice bind groups for img and recomputes the
// dispatch size. The previous bind groups are released once the GPU is
// done with them.
func (s *Stage) Bind(img *gpu.SharedImage) error {
	groups := make([]hal.BindGroup, 0, s.pool.Len())
	for i := 0; i < s.pool.Len(); i++ {
		bg, err := s.gpu.Device().CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("trace_bind_%d", i),
			Layout: s.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: img.StorageView().NativeHandle()}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: s.positions.NativeHandle(), Size: s.positionsSize}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: s.indices.NativeHandle(), Size: s.indicesSize}},
				{Binding: 3, Resource: s.pool.Binding(i)},
			},
		})
		if err != nil {
			for _, g := range groups {
				s.gpu.Device().DestroyBindGroup(g)
			}
			return fmt.Errorf("compute: create bind group %d: %w", i, err)
		}
		groups = append(groups, bg)
	}

	s.releaseGroups()
	s.groups = groups
	s.image = img
	x, y, z := DispatchSize(img.Width(), img.Height())
	s.dispatch = [3]uint32{x, y, z}
	gpu.Logger().Debug("compute: bound image",
		"width", img.Width(), "height", img.Height(),
		"dispatch_x", x, "dispatch_y", y)
	return nil
}

func (s *Stage) releaseGroups() {
	if len(s.groups) == 0 {
		return
	}
	old := s.groups
	device := s.gpu.Device()
	s.gpu.Release(func() {
		for _, g := range old {
			device.DestroyBindGroup(g)
		}
	})
	s.groups = nil
}

// Set returns the bind group for uniform slice i.
func (s *Stage) Set(i int) hal.BindGroup {
	if i < 0 || i >= len(s.groups) {
		return nil
	}
	return s.groups[i]
}

// Dispatch returns the cached workgroup counts for the bound image.
func (s *Stage) Dispatch() (x, y, z uint32) {
	return s.dispatch[0], s.dispatch[1], s.dispatch[2]
}

// Triangles returns the number of uploaded triangles.
func (s *Stage) Triangles() uint32 { return s.triangles }

// Encode records the compute pass for uniform slice i, with the barriers
// that hand the shared image from the raster stage to the shader and back.
func (s *Stage) Encode(enc hal.CommandEncoder, slice int) error {
	bg := s.Set(slice)
	if s.image == nil || bg == nil {
		return ErrNotBound
	}

	s.image.Transition(enc, gputypes.TextureUsageStorageBinding)

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "trace_pass"})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(s.dispatch[0], s.dispatch[1], s.dispatch[2])
	pass.End()

	s.image.Transition(enc, gputypes.TextureUsageTextureBinding)
	return nil
}

// Destroy releases every GPU object. The device must be idle.
func (s *Stage) Destroy() {
	device := s.gpu.Device()
	if device == nil {
		return
	}
	for _, g := range s.groups {
		device.DestroyBindGroup(g)
	}
	s.groups = nil
	if s.indices != nil {
		device.DestroyBuffer(s.indices)
		s.indices = nil
	}
	if s.positions != nil {
		device.DestroyBuffer(s.positions)
		s.positions = nil
	}
	if s.pipeline != nil {
		device.DestroyComputePipeline(s.pipeline)
		s.pipeline = nil
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

func float32Bytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func uint32Bytes(v []uint32) []byte {
	buf := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], u)
	}
	return buf
}
