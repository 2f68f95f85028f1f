package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	errFewCoords   = errors.New("vertex needs 3 coordinates")
	errFewVertices = errors.New("face needs at least 3 vertices")
	errZeroIndex   = errors.New("vertex index 0")
	errRange       = errors.New("vertex index out of range")
)

type object struct {
	name  string
	faces int
}

type decoder struct {
	line      int
	text      string
	positions []float32
	indices   []uint32
	objects   []object
	current   int // index into objects, -1 before the first o/g or face
	face      []uint32
}

// Decode parses OBJ data from r. Only vertex positions and faces are
// used; texture coordinates, normals, materials and smoothing groups are
// skipped. Faces with more than three vertices are fan triangulated.
func Decode(r io.Reader) (*Mesh, error) {
	d := &decoder{current: -1}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		d.line++
		d.text = sc.Text()
		if err := d.parseLine(d.text); err != nil {
			return nil, &ParseError{Line: d.line, Text: strings.TrimSpace(d.text), Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("mesh: read: %w", err)
	}
	return d.mesh()
}

func (d *decoder) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	switch fields[0] {
	case "v":
		return d.parseVertex(fields[1:])
	case "f":
		return d.parseFace(fields[1:])
	case "o", "g":
		name := ""
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		d.objects = append(d.objects, object{name: name})
		d.current = len(d.objects) - 1
	}
	return nil
}

// v <x> <y> <z> [w]
func (d *decoder) parseVertex(fields []string) error {
	if len(fields) < 3 {
		return errFewCoords
	}
	for _, f := range fields[:3] {
		val, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return err
		}
		d.positions = append(d.positions, float32(val))
	}
	return nil
}

// f v1[/vt1][/vn1] v2[/vt2][/vn2] v3[/vt3][/vn3] ...
func (d *decoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return errFewVertices
	}
	if d.current < 0 {
		d.objects = append(d.objects, object{})
		d.current = 0
	}

	d.face = d.face[:0]
	count := len(d.positions) / 3
	for _, f := range fields {
		ref, _, _ := strings.Cut(f, "/")
		val, err := strconv.ParseInt(ref, 10, 32)
		if err != nil {
			return err
		}
		var idx int
		switch {
		case val > 0:
			idx = int(val) - 1
		case val < 0:
			// Relative to the last vertex parsed so far.
			idx = count + int(val)
		default:
			return errZeroIndex
		}
		if idx < 0 || idx >= count {
			return fmt.Errorf("%w: %d with %d vertices", errRange, val, count)
		}
		d.face = append(d.face, uint32(idx))
	}

	for i := 1; i+1 < len(d.face); i++ {
		d.indices = append(d.indices, d.face[0], d.face[i], d.face[i+1])
	}
	d.objects[d.current].faces++
	return nil
}

func (d *decoder) mesh() (*Mesh, error) {
	var found *object
	for i := range d.objects {
		ob := &d.objects[i]
		if ob.faces == 0 {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q and %q", ErrMultipleMeshes, found.name, ob.name)
		}
		found = ob
	}
	if found == nil {
		return nil, ErrNoMesh
	}
	return &Mesh{Name: found.name, Positions: d.positions, Indices: d.indices}, nil
}
