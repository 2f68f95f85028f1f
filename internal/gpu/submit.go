//go:build !nogpu

package gpu

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
)

// Token identifies one queue submission. It is the submission index
// returned by hal.Queue.Submit, so tokens issued by one Context are
// strictly increasing. The zero Token precedes every submission and is
// always complete.
type Token uint64

// waitPollInterval is how often Wait re-checks queue progress.
const waitPollInterval = 500 * time.Microsecond

// submission is a command buffer in flight together with the releases
// that must run once the GPU has finished it.
type submission struct {
	token   Token
	cmds    hal.CommandBuffer
	release []func()
}

// Submit sends cb to the queue. after must be the Token returned by the
// previous Submit (zero for the first one); anything else fails with
// ErrBrokenChain and nothing is submitted. The returned Token replaces
// after in the caller's state.
//
// On success the command buffer belongs to the Context and is freed by
// Reclaim once the GPU has finished it.
func (c *Context) Submit(cb hal.CommandBuffer, after Token) (Token, error) {
	if c.closed {
		return after, ErrClosed
	}
	if after != c.last {
		return after, fmt.Errorf("%w: after %d, latest %d", ErrBrokenChain, after, c.last)
	}

	idx, err := c.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		return after, fmt.Errorf("gpu: submit: %w", err)
	}

	tok := Token(idx)
	s := submission{token: tok, cmds: cb, release: c.deferred}
	c.deferred = nil
	if tok <= c.last {
		// The buffer is on the queue either way; keep it so it is freed
		// at the next idle point.
		s.token = c.last
		c.inFlight = append(c.inFlight, s)
		return after, fmt.Errorf("%w: got %d after %d", ErrTokenRegressed, tok, c.last)
	}

	c.last = tok
	c.inFlight = append(c.inFlight, s)
	return tok, nil
}

// Release schedules fn to run once the GPU has finished the next
// submission. Because submissions complete in order, this also covers
// every submission already in flight. Use it for resources that are
// replaced while the GPU may still read them.
//
// If no further submission happens, fn runs at Close.
func (c *Context) Release(fn func()) {
	if fn == nil {
		return
	}
	if c.closed {
		fn()
		return
	}
	c.deferred = append(c.deferred, fn)
}

// Reclaim frees command buffers and runs releases for every submission
// the GPU has completed. It never blocks.
func (c *Context) Reclaim() {
	if c.queue == nil || len(c.inFlight) == 0 {
		return
	}
	done := Token(c.queue.PollCompleted())
	n := 0
	for n < len(c.inFlight) && c.inFlight[n].token <= done {
		c.retire(c.inFlight[n])
		n++
	}
	if n == 0 {
		return
	}
	Logger().Debug("gpu: reclaimed submissions", "count", n, "completed", uint64(done))
	c.inFlight = append(c.inFlight[:0], c.inFlight[n:]...)
}

func (c *Context) retire(s submission) {
	if s.cmds != nil && c.device != nil {
		c.device.FreeCommandBuffer(s.cmds)
	}
	for _, fn := range s.release {
		fn()
	}
}

// Last returns the most recently issued Token.
func (c *Context) Last() Token { return c.last }

// Completed reports whether the GPU has finished the submission t.
func (c *Context) Completed(t Token) bool {
	if t == 0 {
		return true
	}
	if c.queue == nil {
		return true
	}
	return Token(c.queue.PollCompleted()) >= t
}

// Wait blocks until the submission t has completed or ctx is done.
// Completed submissions are reclaimed before Wait returns.
func (c *Context) Wait(ctx context.Context, t Token) error {
	if c.Completed(t) {
		c.Reclaim()
		return nil
	}

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.Completed(t) {
				c.Reclaim()
				return nil
			}
		}
	}
}

// Pending returns the number of submissions not yet reclaimed.
func (c *Context) Pending() int { return len(c.inFlight) }
