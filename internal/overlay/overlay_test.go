//go:build !nogpu

package overlay

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/gpu/gputest"
)

var white = gputypes.Color{R: 1, G: 1, B: 1, A: 1}

func newOverlay(t *testing.T, ctx *gpu.Context) *Overlay {
	t.Helper()
	ctx.SetSurfaceFormat(gputypes.TextureFormatBGRA8Unorm)
	o, err := New(ctx.Provider(), ctx)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(o.Destroy)
	return o
}

func TestOverlayShaderSource(t *testing.T) {
	for _, want := range []string{"fn vs_main(", "fn fs_main(", "@location(2) color"} {
		if !strings.Contains(overlayShaderSource, want) {
			t.Errorf("overlay shader missing %q", want)
		}
	}
	if _, err := gpu.CompileShader(overlayShaderSource); err != nil {
		t.Fatalf("overlay shader does not compile: %v", err)
	}
}

func TestNewNeedsSurfaceFormat(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	if _, err := New(ctx.Provider(), ctx); !errors.Is(err, ErrNoFormat) {
		t.Errorf("err = %v, want ErrNoFormat", err)
	}
}

func TestNewBadFont(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	ctx.SetSurfaceFormat(gputypes.TextureFormatBGRA8Unorm)
	if _, err := New(ctx.Provider(), ctx, WithFont([]byte("not a font"))); err == nil {
		t.Error("New accepted invalid font data")
	}
}

func TestUpdateUploadsOnce(t *testing.T) {
	ctx, _, log := gputest.NewRecordingContext(t)
	o := newOverlay(t, ctx)

	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	defer enc.DiscardEncoding()

	o.Queue(10, 20, 20, white, "Using device: Noop")
	o.Printf(10, 45, 20, white, "Render time: %d ms (%d FPS)", 16, 60)
	if o.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", o.Pending())
	}

	log.Reset()
	if err := o.Update(enc, 1280, 720); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	want := []string{"transition copy_dst", "copy_buffer_to_texture 1", "transition sampled"}
	if got := log.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("first update ops = %q, want %q", got, want)
	}
	if o.Pending() != 0 {
		t.Errorf("Pending() = %d after Update, want 0", o.Pending())
	}
	visible := len(strings.ReplaceAll("Using device: Noop", " ", "")) +
		len(strings.ReplaceAll("Render time: 16 ms (60 FPS)", " ", ""))
	if got := o.VertexCount(); got != uint32(visible*verticesPerGlyph) {
		t.Errorf("VertexCount() = %d, want %d", got, visible*verticesPerGlyph)
	}

	// Same glyphs again: no atlas traffic.
	log.Reset()
	o.Queue(10, 20, 20, white, "Using device: Noop")
	if err := o.Update(enc, 1280, 720); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if ops := log.Ops(); len(ops) != 0 {
		t.Errorf("second update recorded %q", ops)
	}
	if o.Uploads() != 1 {
		t.Errorf("Uploads() = %d, want 1", o.Uploads())
	}
}

func TestDraw(t *testing.T) {
	ctx, _, log := gputest.NewRecordingContext(t)
	o := newOverlay(t, ctx)

	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	defer enc.DiscardEncoding()

	// Nothing queued: Draw records nothing.
	if err := o.Update(enc, 640, 480); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{Label: "test_pass"})
	log.Reset()
	o.Draw(pass, 640, 480)
	if ops := log.Ops(); len(ops) != 0 {
		t.Errorf("empty overlay recorded %q", ops)
	}

	pass.End()

	o.Queue(0, 20, 16, white, "Hi")
	if err := o.Update(enc, 640, 480); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	pass = enc.BeginRenderPass(&hal.RenderPassDescriptor{Label: "test_pass"})
	log.Reset()
	o.Draw(pass, 640, 480)
	pass.End()
	want := []string{"render.pipeline", "render.viewport 0 0 640 480", "render.draw 12 1", "render.end"}
	if got := log.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("draw ops = %q, want %q", got, want)
	}
}

func TestUpdateReleasesVertices(t *testing.T) {
	ctx, q := gputest.NewNoopContext(t)
	q.Hold = true
	o := newOverlay(t, ctx)

	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	o.Queue(0, 20, 16, white, "a")
	if err := o.Update(enc, 100, 100); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	o.Queue(0, 20, 16, white, "b")
	if err := o.Update(enc, 100, 100); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cb, err := enc.EndEncoding()
	if err != nil {
		t.Fatalf("EndEncoding failed: %v", err)
	}
	tok, err := ctx.Submit(cb, ctx.Last())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// Two staging buffers and the first vertex buffer ride on the
	// submission until it completes.
	ctx.Reclaim()
	if ctx.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", ctx.Pending())
	}
	q.Complete(uint64(tok))
	ctx.Reclaim()
	if ctx.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", ctx.Pending())
	}
}

func TestLayoutZeroExtent(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	o := newOverlay(t, ctx)
	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	defer enc.DiscardEncoding()

	o.Queue(0, 20, 16, white, "hidden")
	if err := o.Update(enc, 0, 0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if o.VertexCount() != 0 {
		t.Errorf("VertexCount() = %d for a zero extent", o.VertexCount())
	}
}

func TestUploadsPassHostVisibility(t *testing.T) {
	ctx, q := gputest.NewNoopContext(t)
	q.Hold = true
	o := newOverlay(t, ctx)
	dev := gputest.DeviceOf(ctx)
	live := dev.Live()

	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	defer enc.DiscardEncoding()

	o.Printf(10, 20, 20, white, "%d frames", 12345)
	if err := o.Update(enc, 800, 600); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !dev.Mappable(o.vertices) {
		t.Error("vertex buffer is not host visible")
	}
	// Atlas staging and vertices.
	if got := dev.Live() - live; got != 2 {
		t.Errorf("%d new buffers, want 2", got)
	}
	n := int(o.VertexCount()) * vertexStride
	if data := dev.Contents(o.vertices, n); len(data) != n {
		t.Errorf("vertex buffer holds %d bytes, want %d", len(data), n)
	}
}

func TestWithAtlasSize(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultAtlasSize},
		{-5, DefaultAtlasSize},
		{256, 256},
		{300, 512},
		{1024, 1024},
	}
	for _, tt := range tests {
		o := options{atlasSize: DefaultAtlasSize}
		WithAtlasSize(tt.in)(&o)
		if o.atlasSize != tt.want {
			t.Errorf("WithAtlasSize(%d) = %d, want %d", tt.in, o.atlasSize, tt.want)
		}
	}

	ctx, _ := gputest.NewNoopContext(t)
	ctx.SetSurfaceFormat(gputypes.TextureFormatBGRA8Unorm)
	ov, err := New(ctx.Provider(), ctx, WithAtlasSize(1000))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer ov.Destroy()
	if got := ov.atlas.size(); got != 1024 {
		t.Errorf("atlas size = %d, want 1024", got)
	}
}
