//go:build !nogpu

// Package overlay draws screen-space text on top of the rendered frame.
//
// Text is queued with Queue or Printf, shaped with HarfBuzz, rasterized
// into a coverage atlas and turned into quads by Update. Draw then
// records the quads into the frame's render pass. Queued text is drawn
// once; callers queue it again every frame.
package overlay

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/message"

	"github.com/gogpu/tracer/internal/gpu"
)

//go:embed shaders/overlay.wgsl
var overlayShaderSource string

var (
	// ErrNoDevice is returned when the provider does not expose a HAL
	// device.
	ErrNoDevice = errors.New("overlay: provider has no hal device")

	// ErrNoFormat is returned when the provider has no surface format yet.
	ErrNoFormat = errors.New("overlay: provider has no surface format")
)

const (
	// vertexStride is position (vec2) + uv (vec2) + color (vec4).
	vertexStride = 32

	verticesPerGlyph = 6

	// rowAlignment is the buffer-to-texture copy row pitch every backend
	// accepts.
	rowAlignment = 256
)

// Releaser defers destruction of GPU objects until in-flight work that
// may use them has completed. *gpu.Context implements it.
type Releaser interface {
	Release(fn func())
}

// Option configures an Overlay.
type Option func(*options)

type options struct {
	font      []byte
	atlasSize int
}

// WithFont sets the TrueType or OpenType font data. The default is Go
// Regular.
func WithFont(ttf []byte) Option {
	return func(o *options) {
		if len(ttf) > 0 {
			o.font = ttf
		}
	}
}

// WithAtlasSize sets the edge length of the glyph atlas in pixels. It is
// rounded up to a multiple of 256 so atlas rows can be copied without
// repacking.
func WithAtlasSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.atlasSize = (n + rowAlignment - 1) / rowAlignment * rowAlignment
		}
	}
}

type item struct {
	x, y  float32
	size  float32
	color gputypes.Color
	text  string
}

// Overlay owns the text pipeline, the glyph atlas texture and the vertex
// buffer of the last Update.
type Overlay struct {
	device hal.Device
	rel    Releaser
	format gputypes.TextureFormat

	shaper  *shaper
	atlas   *atlas
	printer *message.Printer
	items   []item

	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	pipeline       hal.RenderPipeline
	sampler        hal.Sampler
	texture        hal.Texture
	view           hal.TextureView
	group          hal.BindGroup
	textureUsage   gputypes.TextureUsage

	vertices    hal.Buffer
	vertexCount uint32
	uploads     int
}

// New builds an overlay on the device of p. Text is drawn into targets of
// p's surface format.
func New(p gpucontext.DeviceProvider, rel Releaser, opts ...Option) (*Overlay, error) {
	o := options{font: goregular.TTF, atlasSize: DefaultAtlasSize}
	for _, opt := range opts {
		opt(&o)
	}

	device, ok := p.Device().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNoDevice
	}
	format := p.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		return nil, ErrNoFormat
	}

	face, err := sfnt.Parse(o.font)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse font: %w", err)
	}
	sh, err := newShaper(o.font)
	if err != nil {
		return nil, err
	}

	ov := &Overlay{
		device:  device,
		rel:     rel,
		format:  format,
		shaper:  sh,
		atlas:   newAtlas(face, o.atlasSize),
		printer: newPrinter(),
	}
	if err := ov.createPipeline(); err != nil {
		ov.Destroy()
		return nil, err
	}
	if err := ov.createAtlasTexture(); err != nil {
		ov.Destroy()
		return nil, err
	}
	return ov, nil
}

func (o *Overlay) createPipeline() error {
	src, err := gpu.ShaderSource(overlayShaderSource)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	o.shader, err = o.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "overlay_shader",
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("overlay: create shader module: %w", err)
	}

	o.bindLayout, err = o.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "overlay_bind_layout",
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
		return fmt.Errorf("overlay: create bind group layout: %w", err)
	}

	o.pipelineLayout, err = o.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "overlay_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{o.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("overlay: create pipeline layout: %w", err)
	}

	blend := gputypes.BlendStateAlpha()
	o.pipeline, err = o.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "overlay_pipeline",
		Layout: o.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     o.shader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     o.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    o.format,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("overlay: create pipeline: %w", err)
	}
	return nil
}

func (o *Overlay) createAtlasTexture() error {
	size := uint32(o.atlas.size())
	var err error
	o.texture, err = o.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overlay_atlas",
		Size:          hal.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("overlay: create atlas: %w", err)
	}

	o.view, err = o.device.CreateTextureView(o.texture, &hal.TextureViewDescriptor{
		Label:         "overlay_atlas_view",
		Format:        gputypes.TextureFormatR8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("overlay: create atlas view: %w", err)
	}

	o.sampler, err = o.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "overlay_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("overlay: create sampler: %w", err)
	}

	o.group, err = o.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "overlay_bind",
		Layout: o.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: o.view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: o.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("overlay: create bind group: %w", err)
	}
	return nil
}

// Queue adds a line of text with its baseline origin at (x, y) in pixels
// from the top left of the target.
func (o *Overlay) Queue(x, y, size float32, color gputypes.Color, text string) {
	o.items = append(o.items, item{x: x, y: y, size: size, color: color, text: text})
}

// Printf queues text formatted with locale-aware number formatting.
func (o *Overlay) Printf(x, y, size float32, color gputypes.Color, format string, args ...any) {
	o.Queue(x, y, size, color, o.printer.Sprintf(format, args...))
}

// Pending returns the number of lines queued since the last Update.
func (o *Overlay) Pending() int { return len(o.items) }

// VertexCount returns the number of vertices Draw records.
func (o *Overlay) VertexCount() uint32 { return o.vertexCount }

// Uploads returns how many times the atlas was copied to the GPU.
func (o *Overlay) Uploads() int { return o.uploads }

// Update lays out the queued text for a target of width×height, uploads
// new glyphs and the quad vertices, and clears the queue. It records the
// atlas copy into enc, which must be the command buffer Draw records into.
func (o *Overlay) Update(enc hal.CommandEncoder, width, height uint32) error {
	items := o.items
	o.items = o.items[:0]

	data, err := o.layout(items, width, height)
	if errors.Is(err, errAtlasFull) {
		gpu.Logger().Debug("overlay: atlas full, rebuilding", "glyphs", len(o.atlas.glyphs))
		o.atlas.reset()
		data, err = o.layout(items, width, height)
	}
	if err != nil {
		return err
	}

	if o.atlas.dirty {
		if err := o.uploadAtlas(enc); err != nil {
			return err
		}
	}
	return o.uploadVertices(data)
}

// layout builds the vertex data for items, rasterizing missing glyphs.
func (o *Overlay) layout(items []item, width, height uint32) ([]byte, error) {
	if width == 0 || height == 0 {
		return nil, nil
	}
	sx, sy := 2/float32(width), 2/float32(height)

	var data []byte
	for _, it := range items {
		px := pixelSize(it.size)
		c := [4]float32{float32(it.color.R), float32(it.color.G), float32(it.color.B), float32(it.color.A)}
		for _, pg := range o.shaper.shape(it.text, it.size) {
			g, err := o.atlas.lookup(glyphKey{gid: pg.gid, size: px})
			if err != nil {
				return nil, err
			}
			if g.rect.Empty() {
				continue
			}
			x0 := it.x + pg.x + float32(g.offset.X)
			y0 := it.y + pg.y + float32(g.offset.Y)
			x1 := x0 + float32(g.rect.Dx())
			y1 := y0 + float32(g.rect.Dy())
			u0, v0, u1, v1 := o.atlas.uv(g.rect)

			l, r := x0*sx-1, x1*sx-1
			t, b := 1-y0*sy, 1-y1*sy
			data = appendVertex(data, l, t, u0, v0, c)
			data = appendVertex(data, r, t, u1, v0, c)
			data = appendVertex(data, r, b, u1, v1, c)
			data = appendVertex(data, l, t, u0, v0, c)
			data = appendVertex(data, r, b, u1, v1, c)
			data = appendVertex(data, l, b, u0, v1, c)
		}
	}
	return data, nil
}

func appendVertex(dst []byte, x, y, u, v float32, c [4]float32) []byte {
	for _, f := range [...]float32{x, y, u, v, c[0], c[1], c[2], c[3]} {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

// uploadAtlas copies the whole atlas through a staging buffer that is
// released after the frame's submission completes.
func (o *Overlay) uploadAtlas(enc hal.CommandEncoder) error {
	size := uint32(o.atlas.size())
	pix := o.atlas.image.Pix

	staging, err := gpu.NewStagingBuffer(o.device, "overlay_atlas_staging", pix)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	device := o.device
	o.rel.Release(func() { device.DestroyBuffer(staging) })

	o.transition(enc, gputypes.TextureUsageCopyDst)
	enc.CopyBufferToTexture(staging, o.texture, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(o.atlas.image.Stride),
			RowsPerImage: size,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  o.texture,
			MipLevel: 0,
			Aspect:   gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: size, Height: size, DepthOrArrayLayers: 1},
	}})
	o.transition(enc, gputypes.TextureUsageTextureBinding)

	o.atlas.dirty = false
	o.uploads++
	return nil
}

func (o *Overlay) transition(enc hal.CommandEncoder, usage gputypes.TextureUsage) {
	if o.textureUsage == usage {
		return
	}
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: o.texture,
		Range:   hal.TextureRange{Aspect: gputypes.TextureAspectAll},
		Usage:   hal.TextureUsageTransition{OldUsage: o.textureUsage, NewUsage: usage},
	}})
	o.textureUsage = usage
}

// uploadVertices replaces the vertex buffer with a host-visible one
// written through a mapping. The previous buffer may still be read by the
// last submission and is released through rel.
func (o *Overlay) uploadVertices(data []byte) error {
	if old := o.vertices; old != nil {
		device := o.device
		o.rel.Release(func() { device.DestroyBuffer(old) })
		o.vertices = nil
	}
	o.vertexCount = 0
	if len(data) == 0 {
		return nil
	}

	buf, err := o.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_vertices",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageMapWrite,
	})
	if err != nil {
		return fmt.Errorf("overlay: create vertex buffer: %w", err)
	}
	if err := gpu.WriteMapped(o.device, buf, 0, data); err != nil {
		o.device.DestroyBuffer(buf)
		return fmt.Errorf("overlay: write vertices: %w", err)
	}
	o.vertices = buf
	o.vertexCount = uint32(len(data) / vertexStride)
	return nil
}

// Draw records the quads built by the last Update into pass. It records
// nothing when there is no text.
func (o *Overlay) Draw(pass hal.RenderPassEncoder, width, height uint32) {
	if o.vertexCount == 0 {
		return
	}
	pass.SetPipeline(o.pipeline)
	pass.SetBindGroup(0, o.group, nil)
	pass.SetVertexBuffer(0, o.vertices, 0)
	pass.SetViewport(0, 0, float32(width), float32(height), 0, 1)
	pass.Draw(o.vertexCount, 1, 0, 0)
}

// Destroy releases every GPU object. The device must be idle.
func (o *Overlay) Destroy() {
	if o.device == nil {
		return
	}
	d := o.device
	if o.vertices != nil {
		d.DestroyBuffer(o.vertices)
	}
	if o.group != nil {
		d.DestroyBindGroup(o.group)
	}
	if o.sampler != nil {
		d.DestroySampler(o.sampler)
	}
	if o.view != nil {
		d.DestroyTextureView(o.view)
	}
	if o.texture != nil {
		d.DestroyTexture(o.texture)
	}
	if o.pipeline != nil {
		d.DestroyRenderPipeline(o.pipeline)
	}
	if o.pipelineLayout != nil {
		d.DestroyPipelineLayout(o.pipelineLayout)
	}
	if o.bindLayout != nil {
		d.DestroyBindGroupLayout(o.bindLayout)
	}
	if o.shader != nil {
		d.DestroyShaderModule(o.shader)
	}
	*o = Overlay{}
}
