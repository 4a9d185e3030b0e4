// Package clock provides the monotonic millisecond clock consumed by the
// reliability FSM (§4.8) and the session/dispatch loop (§4.9).
package clock

import "time"

// Clock returns milliseconds elapsed since an implementation-defined epoch.
// The real implementation uses process start; it only needs to be
// monotonic, not wall-clock accurate (§1 Non-goals: no time sync).
type Clock interface {
	NowMs() int64
}

// Real is a Clock backed by time.Since from the moment it was constructed.
type Real struct {
	start time.Time
}

// New creates a Real clock whose epoch is the moment of construction.
func New() *Real {
	return &Real{start: time.Now()}
}

// NowMs returns milliseconds elapsed since the clock was constructed.
func (c *Real) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}
