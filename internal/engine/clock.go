package engine

import "sync/atomic"

// Clock counts rendered blocks and frames.
//
// The audio goroutine is the only writer; any goroutine may read. Callers
// use it to wait for block boundaries (tests, the offline frontend) and to
// report engine progress on shutdown.
type Clock struct {
	cycles atomic.Int64
	frames atomic.Int64
}

// NewClock creates a clock at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Advance records one rendered block of frames.
func (c *Clock) Advance(frames int) {
	c.frames.Add(int64(frames))
	c.cycles.Add(1)
}

// Cycles returns the number of blocks rendered so far.
func (c *Clock) Cycles() int64 {
	return c.cycles.Load()
}

// Frames returns the number of frames rendered so far.
func (c *Clock) Frames() int64 {
	return c.frames.Load()
}
