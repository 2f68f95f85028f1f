package mesh

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

func decode(t *testing.T, src string) *Mesh {
	t.Helper()
	m, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return m
}

func TestDecodeTriangle(t *testing.T) {
	m := decode(t, `
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`)
	if want := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}; !reflect.DeepEqual(m.Positions, want) {
		t.Errorf("Positions = %v, want %v", m.Positions, want)
	}
	if want := []uint32{0, 1, 2}; !reflect.DeepEqual(m.Indices, want) {
		t.Errorf("Indices = %v, want %v", m.Indices, want)
	}
	if m.Vertices() != 3 || m.Triangles() != 1 {
		t.Errorf("Vertices() = %d, Triangles() = %d", m.Vertices(), m.Triangles())
	}
}

func TestDecodeFan(t *testing.T) {
	m := decode(t, `
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0.5 1.5 0
f 1 2 3 4 5
`)
	want := []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4}
	if !reflect.DeepEqual(m.Indices, want) {
		t.Errorf("Indices = %v, want %v", m.Indices, want)
	}
	if m.Name != "quad" {
		t.Errorf("Name = %q, want quad", m.Name)
	}
}

func TestDecodeRelativeIndices(t *testing.T) {
	m := decode(t, `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
v 1 1 0
f -3/1 -2/2/2 -1//3
`)
	want := []uint32{0, 1, 2, 1, 2, 3}
	if !reflect.DeepEqual(m.Indices, want) {
		t.Errorf("Indices = %v, want %v", m.Indices, want)
	}
}

func TestDecodeCube(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "cube.obj"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if m.Vertices() != 8 {
		t.Errorf("Vertices() = %d, want 8", m.Vertices())
	}
	if m.Triangles() != 12 {
		t.Errorf("Triangles() = %d, want 12", m.Triangles())
	}
	if m.Vertices()*3 != len(m.Positions) {
		t.Errorf("%d position triples for %d scalars", m.Vertices(), len(m.Positions))
	}
	if m.Triangles()*3 != len(m.Indices) {
		t.Errorf("%d index triples for %d scalars", m.Triangles(), len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= m.Vertices() {
			t.Fatalf("index %d = %d out of range", i, idx)
		}
	}
}

func TestLoadTranslates(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "cube.obj"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := m.Vertex(0); got != [3]float32{-0.5, -0.5, 0.5 + SceneDepth} {
		t.Errorf("Vertex(0) = %v", got)
	}
	if got := m.Triangle(0); got != [3]uint32{0, 1, 3} {
		t.Errorf("Triangle(0) = %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.obj"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestMeshCount(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "", ErrNoMesh},
		{"comments only", "# nothing\n\n", ErrNoMesh},
		{"vertices only", "v 0 0 0\nv 1 0 0\nv 0 1 0\n", ErrNoMesh},
		{"empty objects", "o a\no b\n", ErrNoMesh},
		{"two objects", "v 0 0 0\nv 1 0 0\nv 0 1 0\no a\nf 1 2 3\no b\nf 1 2 3\n", ErrMultipleMeshes},
		{"two groups", "v 0 0 0\nv 1 0 0\nv 0 1 0\ng a\nf 1 2 3\ng b\nf 3 2 1\n", ErrMultipleMeshes},
		{"default and named", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\no b\nf 1 2 3\n", ErrMultipleMeshes},
		{"empty group before mesh", "g unused\no a\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"short vertex", "v 0 0\n", 1},
		{"bad coordinate", "v 0 x 0\n", 1},
		{"short face", "v 0 0 0\nv 1 0 0\nf 1 2\n", 3},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", 4},
		{"forward reference", "v 0 0 0\nv 1 0 0\nf 1 2 3\nv 0 1 0\n", 3},
		{"relative underflow", "v 0 0 0\nv 1 0 0\nv 0 1 0\n\nf -4 -2 -1\n", 5},
		{"bad index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 a 3\n", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if pe.Line != tt.line {
				t.Errorf("Line = %d, want %d", pe.Line, tt.line)
			}
		})
	}

	_, err := Decode(strings.NewReader("v 0 q 0\n"))
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Errorf("err = %v, want to unwrap to *strconv.NumError", err)
	}
}

func TestTranslate(t *testing.T) {
	m := &Mesh{Positions: []float32{1, 2, 3, 4, 5, 6}}
	m.Translate(1, 0, -5)
	want := []float32{2, 2, -2, 5, 5, 1}
	if !reflect.DeepEqual(m.Positions, want) {
		t.Errorf("Positions = %v, want %v", m.Positions, want)
	}
}
