package clock

import (
	"testing"
	"time"
)

func TestRealClockMonotonic(t *testing.T) {
	c := New()
	first := c.NowMs()
	time.Sleep(2 * time.Millisecond)
	second := c.NowMs()

	if second < first {
		t.Errorf("NowMs() went backwards: %d then %d", first, second)
	}
}

func TestRealClockStartsNearZero(t *testing.T) {
	c := New()
	if got := c.NowMs(); got < 0 || got > 50 {
		t.Errorf("NowMs() immediately after New() = %d, want near 0", got)
	}
}
