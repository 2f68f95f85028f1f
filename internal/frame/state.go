package frame

// State is a phase of the frame state machine. The orchestrator tracks the
// surface, the framebuffer set and the per-iteration phase separately; each
// reports one of these values.
type State int

const (
	// Idle is the phase between iterations.
	Idle State = iota
	// SurfaceValid means the swapchain matches the window.
	SurfaceValid
	// SurfaceDirty means the swapchain must be recreated before the next
	// acquire.
	SurfaceDirty
	// FramebuffersReady means a framebuffer set exists for the current
	// surface generation.
	FramebuffersReady
	// FramebuffersStale means the framebuffer set is absent.
	FramebuffersStale
	// Acquired means a swapchain image is held by the current iteration.
	Acquired
	// Submitted means the frame's command buffer reached the queue.
	Submitted
	// Presented means the image was handed back for display.
	Presented
)

var stateNames = [...]string{
	Idle:              "idle",
	SurfaceValid:      "surface_valid",
	SurfaceDirty:      "surface_dirty",
	FramebuffersReady: "framebuffers_ready",
	FramebuffersStale: "framebuffers_stale",
	Acquired:          "acquired",
	Submitted:         "submitted",
	Presented:         "presented",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
