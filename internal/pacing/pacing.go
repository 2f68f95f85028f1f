// Package pacing measures frame rate over a rolling window of frame
// boundaries.
package pacing

import "time"

// DefaultWindow is the rolling window CurrentFPS averages over.
const DefaultWindow = 100 * time.Millisecond

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Counter.
type Option func(*Counter)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(fc *Counter) {
		if c != nil {
			fc.now = c
		}
	}
}

// WithWindow sets the rolling window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(fc *Counter) {
		if d > 0 {
			fc.window = d
		}
	}
}

// Counter records frame boundaries and reports a frames-per-second rate
// derived from the boundaries that fall inside the window.
//
// A Counter is not safe for concurrent use.
type Counter struct {
	now     Clock
	window  time.Duration
	samples []time.Time
}

// New returns a Counter using the wall clock and DefaultWindow unless
// overridden by opts.
func New(opts ...Option) *Counter {
	c := &Counter{now: time.Now, window: DefaultWindow}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the rolling window.
func (c *Counter) Window() time.Duration { return c.window }

// EndFrame records a frame boundary at the current clock time.
func (c *Counter) EndFrame() {
	now := c.now()
	c.samples = append(c.samples, now)
	c.prune(now)
}

// prune drops samples that left the window. The slice is compacted in
// place so a steady frame rate does not grow it.
func (c *Counter) prune(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(c.samples) && !c.samples[i].After(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(c.samples, c.samples[i:])
		c.samples = c.samples[:n]
	}
}

// CurrentFPS returns the number of frame boundaries inside the window
// ending now, scaled to one second. It returns 0 until at least two
// boundaries are inside the window.
func (c *Counter) CurrentFPS() int {
	c.prune(c.now())
	if len(c.samples) < 2 {
		return 0
	}
	return int(int64(len(c.samples)) * int64(time.Second) / int64(c.window))
}

// FrameTimeMillis returns 1000 / CurrentFPS, or 0 when the rate is 0.
func (c *Counter) FrameTimeMillis() int {
	fps := c.CurrentFPS()
	if fps == 0 {
		return 0
	}
	return 1000 / fps
}

// Samples returns how many boundaries are currently inside the window.
func (c *Counter) Samples() int { return len(c.samples) }
