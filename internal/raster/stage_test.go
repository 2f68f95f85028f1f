//go:build !nogpu

package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tracer/internal/gpu"
	"github.com/gogpu/tracer/internal/gpu/gputest"
	"github.com/gogpu/tracer/internal/surface"
)

func newStage(t *testing.T, ctx *gpu.Context) *Stage {
	t.Helper()
	s, err := New(ctx, gputypes.TextureFormatBGRA8Unorm, DefaultClearColor)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func TestBlitShaderSource(t *testing.T) {
	for _, want := range []string{
		"fn vs_main(",
		"fn fs_main(",
		"texture_2d<f32>",
		"textureSample(",
	} {
		if !strings.Contains(blitShaderSource, want) {
			t.Errorf("blit shader missing %q", want)
		}
	}
	if _, err := gpu.CompileShader(blitShaderSource); err != nil {
		t.Fatalf("blit shader does not compile: %v", err)
	}
}

func TestQuadVertices(t *testing.T) {
	if got := len(quadVertices) * 4 / quadVertexStride; got != QuadVertexCount {
		t.Fatalf("quad has %d vertices, want %d", got, QuadVertexCount)
	}
	layout := quadVertexLayout()
	if len(layout) != 1 || layout[0].ArrayStride != quadVertexStride || len(layout[0].Attributes) != 2 {
		t.Errorf("unexpected vertex layout: %+v", layout)
	}
}

func TestBeginRecordsBlit(t *testing.T) {
	ctx, _, log := gputest.NewRecordingContext(t)
	s := newStage(t, ctx)

	enc, err := ctx.Encoder("frame")
	if err != nil {
		t.Fatalf("Encoder failed: %v", err)
	}
	defer enc.Destroy()

	if _, err := s.Begin(enc, nil, 1280, 720); !errors.Is(err, ErrNotBound) {
		t.Fatalf("Begin before Bind: err = %v, want ErrNotBound", err)
	}

	img, err := ctx.NewSharedImage(1280, 720, 1)
	if err != nil {
		t.Fatalf("NewSharedImage failed: %v", err)
	}
	defer img.Destroy()
	if err := s.Bind(img); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}

	fb := s.NewFramebuffers(1)
	defer fb.Destroy()
	view, err := fb.View(surface.Frame{View: &gputest.View{ID: 0}, Generation: 1})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	log.Reset()
	pass, err := s.Begin(enc, view, 1280, 720)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	pass.End()

	want := []string{
		"render.begin blit_pass clear=0,0,1,1",
		"render.pipeline",
		"render.viewport 0 0 1280 720",
		"render.draw 6 1",
		"render.end",
	}
	if got := log.Ops(); !reflect.DeepEqual(got, want) {
		t.Errorf("recorded ops:\n got %q\nwant %q", got, want)
	}
	enc.DiscardEncoding()
}

func TestQuadUploadedThroughStaging(t *testing.T) {
	ctx, q, log := gputest.NewRecordingContext(t)
	s := newStage(t, ctx)

	dev := gputest.DeviceOf(ctx)
	if dev.Mappable(s.vertices) {
		t.Error("quad buffer is host visible, want device local")
	}
	want := make([]byte, 4*len(quadVertices))
	for i, f := range quadVertices {
		binary.LittleEndian.PutUint32(want[i*4:], math.Float32bits(f))
	}
	if got := dev.Contents(s.vertices, len(want)); !bytes.Equal(got, want) {
		t.Error("quad buffer does not hold the quad vertices")
	}
	if got := log.Filter("copy_buffer_to_buffer", "transition_buffer"); !reflect.DeepEqual(got, []string{
		"copy_buffer_to_buffer 1",
		"transition_buffer vertex",
	}) {
		t.Errorf("upload ops = %q", got)
	}
	if got := len(q.Submitted()); got != 1 {
		t.Errorf("%d submissions, want 1 upload", got)
	}
}

func TestFramebuffersTrackViews(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	s := newStage(t, ctx)

	views := []*gputest.View{{ID: 0}, {ID: 1}, {ID: 2}}
	fb := s.NewFramebuffers(4)
	if s.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", s.Builds())
	}
	if fb.Len() != 0 {
		t.Fatalf("new set has %d views, want 0", fb.Len())
	}

	for _, i := range []int{0, 0, 2} {
		got, err := fb.View(surface.Frame{View: views[i], Generation: 4})
		if err != nil {
			t.Fatalf("View failed: %v", err)
		}
		if got != views[i] {
			t.Errorf("View returned %v, want image %d", got, i)
		}
	}
	if fb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", fb.Len())
	}

	if _, err := fb.View(surface.Frame{Generation: 4}); !errors.Is(err, ErrNoTarget) {
		t.Errorf("frame without view: err = %v, want ErrNoTarget", err)
	}
}

func TestFramebuffersBounded(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	s := newStage(t, ctx)

	fb := s.NewFramebuffers(1)
	for i := 0; i < 3*maxTargets; i++ {
		if _, err := fb.View(surface.Frame{View: &gputest.View{ID: i}, Generation: 1}); err != nil {
			t.Fatalf("View failed: %v", err)
		}
	}
	if fb.Len() != maxTargets {
		t.Errorf("Len() = %d, want %d", fb.Len(), maxTargets)
	}
}

func TestFramebuffersGeneration(t *testing.T) {
	ctx, _ := gputest.NewNoopContext(t)
	s := newStage(t, ctx)

	fb := s.NewFramebuffers(2)
	_, err := fb.View(surface.Frame{View: &gputest.View{}, Generation: 1})
	if !errors.Is(err, ErrStaleFramebuffers) {
		t.Fatalf("err = %v, want ErrStaleFramebuffers", err)
	}

	fb.Destroy()
	fb.Destroy()
	if _, err := fb.View(surface.Frame{View: &gputest.View{}, Generation: 2}); !errors.Is(err, ErrDestroyed) {
		t.Errorf("View after Destroy: err = %v, want ErrDestroyed", err)
	}

	var nilSet *Framebuffers
	nilSet.Destroy()
}
