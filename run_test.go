//go:build !nogpu

package tracer

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gogpu/gpu/types"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tracer/internal/mesh"
)

func TestRunNoModel(t *testing.T) {
	if err := Run(context.Background(), ""); !errors.Is(err, ErrNoModel) {
		t.Fatalf("Run(\"\") err = %v, want ErrNoModel", err)
	}
}

func TestRunMissingModel(t *testing.T) {
	err := Run(context.Background(), filepath.Join(t.TempDir(), "missing.obj"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestRunMultipleMeshes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.obj")
	obj := "v 0 0 0\nv 1 0 0\nv 0 1 0\no a\nf 1 2 3\no b\nf 1 2 3\n"
	if err := os.WriteFile(path, []byte(obj), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), path); !errors.Is(err, mesh.ErrMultipleMeshes) {
		t.Fatalf("err = %v, want mesh.ErrMultipleMeshes", err)
	}
}

func TestLogMesh(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	m, err := mesh.Decode(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	m.Translate(0, 0, mesh.SceneDepth)
	logMesh(context.Background(), m)

	out := buf.String()
	if n := strings.Count(out, "mesh vertex"); n != 3 {
		t.Errorf("logged %d vertices, want 3", n)
	}
	if n := strings.Count(out, "mesh triangle"); n != 1 {
		t.Errorf("logged %d triangles, want 1", n)
	}
	if !strings.Contains(out, "z=-5") {
		t.Errorf("vertex log does not show the scene offset:\n%s", out)
	}
}

func TestLogMeshSilentByDefault(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	m, err := mesh.Decode(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	logMesh(context.Background(), m)
	if strings.Contains(buf.String(), "mesh vertex") {
		t.Error("vertices logged above debug level")
	}
}

func TestParseHelpers(t *testing.T) {
	if b, err := ParseBackend(""); err != nil || b != types.GraphicsAPIAuto {
		t.Errorf("ParseBackend(\"\") = %v, %v", b, err)
	}
	if b, err := ParseBackend("software"); err != nil || b != types.GraphicsAPISoftware {
		t.Errorf("ParseBackend(software) = %v, %v", b, err)
	}
	if _, err := ParseBackend("glide"); err == nil {
		t.Error("ParseBackend(glide) succeeded")
	}
	if m, err := ParsePresentMode("mailbox"); err != nil || m != hal.PresentModeMailbox {
		t.Errorf("ParsePresentMode(mailbox) = %v, %v", m, err)
	}
}
