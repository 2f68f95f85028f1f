// Package camera is a first-person camera driven by held keys and
// pointer motion. It produces the constants block the trace shader reads.
package camera

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
)

// UniformSize is the size of the encoded Uniform in bytes.
const UniformSize = 80

const (
	// DefaultFOV is the horizontal and vertical field of view in degrees.
	DefaultFOV = 40

	// DefaultSpeed is the movement speed in scene units per second.
	DefaultSpeed = 2

	// DefaultSensitivity is the look rotation in radians per pointer unit.
	DefaultSensitivity = 0.002

	maxPitch = 89 * math.Pi / 180
)

var worldUp = mgl32.Vec3{0, 1, 0}

// Keys reports held keys. *input.State implements it.
type Keys interface {
	Pressed(gpucontext.Key) bool
}

// KeyMap is a Keys backed by a plain map.
type KeyMap map[gpucontext.Key]bool

// Pressed implements Keys.
func (m KeyMap) Pressed(k gpucontext.Key) bool { return m[k] }

// Camera is a position plus yaw and pitch. Yaw 0 and pitch 0 look down -z.
type Camera struct {
	Position    mgl32.Vec3
	Yaw, Pitch  float32
	FOV         mgl32.Vec2 // degrees, horizontal and vertical
	Speed       float32
	Sensitivity float32
}

// New returns a camera at the origin with the given field of view in
// degrees.
func New(fovX, fovY float32) *Camera {
	return &Camera{
		FOV:         mgl32.Vec2{fovX, fovY},
		Speed:       DefaultSpeed,
		Sensitivity: DefaultSensitivity,
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	return mgl32.Vec3{float32(cp * sy), float32(sp), float32(-cp * cy)}.Normalize()
}

// Right returns the unit right vector, always horizontal.
func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(worldUp).Normalize()
}

// Up returns the unit up vector of the view.
func (c *Camera) Up() mgl32.Vec3 {
	return c.Right().Cross(c.Forward()).Normalize()
}

// Update moves the camera for dt seconds of held keys. W/S move along the
// view direction, A/D strafe, Space and left Shift move along world up.
func (c *Camera) Update(keys Keys, dt float32) {
	var move mgl32.Vec3
	if keys.Pressed(gpucontext.KeyW) || keys.Pressed(gpucontext.KeyUp) {
		move = move.Add(c.Forward())
	}
	if keys.Pressed(gpucontext.KeyS) || keys.Pressed(gpucontext.KeyDown) {
		move = move.Sub(c.Forward())
	}
	if keys.Pressed(gpucontext.KeyD) || keys.Pressed(gpucontext.KeyRight) {
		move = move.Add(c.Right())
	}
	if keys.Pressed(gpucontext.KeyA) || keys.Pressed(gpucontext.KeyLeft) {
		move = move.Sub(c.Right())
	}
	if keys.Pressed(gpucontext.KeySpace) {
		move = move.Add(worldUp)
	}
	if keys.Pressed(gpucontext.KeyLeftShift) {
		move = move.Sub(worldUp)
	}
	if move.Len() == 0 || dt <= 0 {
		return
	}
	c.Position = c.Position.Add(move.Normalize().Mul(c.Speed * dt))
}

// Rotate turns the camera by a pointer delta. Positive dx turns right,
// positive dy looks down. Pitch stops short of straight up or down.
func (c *Camera) Rotate(dx, dy float64) {
	c.Yaw += float32(dx) * c.Sensitivity
	c.Pitch -= float32(dy) * c.Sensitivity
	c.Pitch = mgl32.Clamp(c.Pitch, -maxPitch, maxPitch)
	c.Yaw = float32(math.Remainder(float64(c.Yaw), 2*math.Pi))
}

// Uniform returns the shader constants for an image of width×height and a
// mesh with the given triangle count.
func (c *Camera) Uniform(width, height, triangles uint32) Uniform {
	f, r, u := c.Forward(), c.Right(), c.Up()
	tanX := float32(math.Tan(float64(mgl32.DegToRad(c.FOV.X())) / 2))
	tanY := float32(math.Tan(float64(mgl32.DegToRad(c.FOV.Y())) / 2))
	return Uniform{
		Origin:    c.Position.Vec4(1),
		Forward:   f.Vec4(0),
		Right:     r.Vec4(tanX),
		Up:        u.Vec4(tanY),
		Extent:    [2]uint32{width, height},
		Triangles: triangles,
	}
}

// Uniform mirrors the trace shader's Constants block. Right.W and Up.W
// carry tan(fov/2) for their axis.
type Uniform struct {
	Origin    mgl32.Vec4
	Forward   mgl32.Vec4
	Right     mgl32.Vec4
	Up        mgl32.Vec4
	Extent    [2]uint32
	Triangles uint32
}

// Bytes encodes u in the std140 layout of Constants.
func (u Uniform) Bytes() []byte {
	buf := make([]byte, UniformSize)
	off := 0
	for _, v := range []mgl32.Vec4{u.Origin, u.Forward, u.Right, u.Up} {
		for _, f := range v {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	binary.LittleEndian.PutUint32(buf[64:], u.Extent[0])
	binary.LittleEndian.PutUint32(buf[68:], u.Extent[1])
	binary.LittleEndian.PutUint32(buf[72:], u.Triangles)
	return buf
}
