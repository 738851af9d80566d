package usartsim

import (
	"context"
	"sync"
	"time"
)

// Capture records the frames a peripheral transmits. It stands in for a terminal
// or any other far end that only listens.
type Capture struct {
	mu     sync.Mutex
	frames []Frame
}

// Attach taps p and returns c.
func (c *Capture) Attach(p *Peripheral) *Capture {
	p.Tap(c.add)
	return c
}

func (c *Capture) add(f Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, f)
	c.mu.Unlock()
}

// Frames returns a copy of the recorded frames.
func (c *Capture) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Bytes returns the data of the recorded frames.
func (c *Capture) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.frames))
	for i, f := range c.frames {
		out[i] = f.Data
	}
	return out
}

// Len returns the number of recorded frames.
func (c *Capture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// Reset drops the recorded frames.
func (c *Capture) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

// WaitLen blocks until at least n frames are recorded or ctx is done.
func (c *Capture) WaitLen(ctx context.Context, n int) error {
	for c.Len() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Microsecond):
		}
	}
	return nil
}
