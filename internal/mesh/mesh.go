// Package mesh loads a single triangle mesh from a Wavefront OBJ file into
// the flat position and index arrays the tracer uploads to the GPU.
package mesh

import (
	"errors"
	"fmt"
	"os"
)

// SceneDepth is the z offset Load applies so the model sits in front of a
// camera at the origin looking down -z.
const SceneDepth = -5

var (
	// ErrNoMesh is returned when a file contains no faces.
	ErrNoMesh = errors.New("mesh: no mesh in file")

	// ErrMultipleMeshes is returned when faces belong to more than one
	// object or group.
	ErrMultipleMeshes = errors.New("mesh: more than one mesh in file")
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mesh: line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Mesh is an indexed triangle soup. Positions holds x, y, z triples and
// Indices holds one triple per triangle.
type Mesh struct {
	Name      string
	Positions []float32
	Indices   []uint32
}

// Vertices returns the number of position triples.
func (m *Mesh) Vertices() int { return len(m.Positions) / 3 }

// Triangles returns the number of index triples.
func (m *Mesh) Triangles() int { return len(m.Indices) / 3 }

// Vertex returns position i.
func (m *Mesh) Vertex(i int) [3]float32 {
	p := m.Positions[i*3 : i*3+3]
	return [3]float32{p[0], p[1], p[2]}
}

// Triangle returns index triple i.
func (m *Mesh) Triangle(i int) [3]uint32 {
	t := m.Indices[i*3 : i*3+3]
	return [3]uint32{t[0], t[1], t[2]}
}

// Translate offsets every position.
func (m *Mesh) Translate(dx, dy, dz float32) {
	for i := 0; i+2 < len(m.Positions); i += 3 {
		m.Positions[i] += dx
		m.Positions[i+1] += dy
		m.Positions[i+2] += dz
	}
}

// Load decodes the OBJ file at path and moves it to SceneDepth.
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Translate(0, 0, SceneDepth)
	return m, nil
}
