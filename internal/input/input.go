// Package input turns window key and pointer callbacks into the per-frame
// state the camera reads: which keys are held and how far the pointer
// moved since the last frame.
package input

import (
	"maps"

	"github.com/gogpu/gpucontext"
)

// State is the decoded input. It is driven from window callbacks on the
// main thread and read by the frame loop on the same thread; it is not
// safe for concurrent use.
type State struct {
	pressed map[gpucontext.Key]bool
	mods    gpucontext.Modifiers

	lastX, lastY float64
	tracking     bool
	dx, dy       float64
}

// New returns an empty State.
func New() *State {
	return &State{pressed: make(map[gpucontext.Key]bool)}
}

// Attach registers the key and pointer callbacks on src. Sources that
// deliver unified pointer events are read through Pointer, which sees the
// raw motion of a captured cursor.
func (s *State) Attach(src gpucontext.EventSource) {
	src.OnKeyPress(s.KeyDown)
	src.OnKeyRelease(s.KeyUp)
	if ps, ok := src.(gpucontext.PointerEventSource); ok {
		ps.OnPointer(s.Pointer)
	} else {
		src.OnMouseMove(s.MouseMove)
	}
	src.OnFocus(func(focused bool) {
		if !focused {
			s.Release()
		}
	})
}

// KeyDown records k as held.
func (s *State) KeyDown(k gpucontext.Key, mods gpucontext.Modifiers) {
	if k == gpucontext.KeyUnknown {
		return
	}
	s.mods = mods
	s.pressed[k] = true
}

// KeyUp records k as released.
func (s *State) KeyUp(k gpucontext.Key, mods gpucontext.Modifiers) {
	s.mods = mods
	delete(s.pressed, k)
}

// Pressed reports whether k is held.
func (s *State) Pressed(k gpucontext.Key) bool { return s.pressed[k] }

// Modifiers returns the modifier state of the last key event.
func (s *State) Modifiers() gpucontext.Modifiers { return s.mods }

// Keys returns a copy of the held keys.
func (s *State) Keys() map[gpucontext.Key]bool { return maps.Clone(s.pressed) }

// MouseMove accumulates the motion from the previous pointer position.
// The first position after New or ResetPointer only sets the origin.
func (s *State) MouseMove(x, y float64) {
	if s.tracking {
		s.dx += x - s.lastX
		s.dy += y - s.lastY
	}
	s.lastX, s.lastY = x, y
	s.tracking = true
}

// Pointer accumulates mouse motion from a unified pointer event. Relative
// deltas, reported while the cursor is captured, are used as they are;
// otherwise the motion is taken from the absolute position.
func (s *State) Pointer(ev gpucontext.PointerEvent) {
	if ev.Type != gpucontext.PointerMove || ev.PointerType != gpucontext.PointerTypeMouse {
		return
	}
	if ev.DeltaX == 0 && ev.DeltaY == 0 {
		s.MouseMove(ev.X, ev.Y)
		return
	}
	s.dx += ev.DeltaX
	s.dy += ev.DeltaY
	// Captured cursors are warped; the next absolute position starts over.
	s.tracking = false
}

// FetchDelta returns the motion accumulated since the previous call and
// resets it.
func (s *State) FetchDelta() (dx, dy float64) {
	dx, dy = s.dx, s.dy
	s.dx, s.dy = 0, 0
	return dx, dy
}

// ResetPointer forgets the pointer origin, so a cursor warp after a
// capture change does not show up as motion.
func (s *State) ResetPointer() {
	s.tracking = false
	s.dx, s.dy = 0, 0
}

// Release drops every held key and pending motion.
func (s *State) Release() {
	clear(s.pressed)
	s.mods = 0
	s.ResetPointer()
}
