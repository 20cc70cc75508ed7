// Package throttle implements a leaky-bucket byte-rate limiter that can gate
// a UDP context's sends through transport.Options.Throttler. The server does
// not attach one: mediaserver.AcceptSlot leaves Options.Throttler nil, so
// server-to-client sends are not throttled.
package throttle

import (
	"sync"
	"time"
)

// window is the leaky-bucket refill period. Bytes sent are accounted against
// the budget for the window they fall in; when a window rolls over, the
// budget resets rather than carrying a backlog forward.
const window = 5 * time.Millisecond

// Throttler gates transmission so cumulative bytes sent in any 5 ms window
// stay within a configured Mbps ceiling. It smooths encoder bursts (e.g. a
// freshly emitted keyframe) across several windows instead of sending them
// in one burst that could overrun a client's uplink.
type Throttler struct {
	mu sync.Mutex

	maxBytesPerWindow int64
	windowStart       time.Time
	sentInWindow      int64

	now func() time.Time
}

// New creates a Throttler with an initial ceiling of maxMbps megabits/sec.
// A non-positive maxMbps disables throttling (AwaitBytes never blocks).
func New(maxMbps float64) *Throttler {
	t := &Throttler{now: time.Now}
	t.SetMaxMbps(maxMbps)
	t.windowStart = t.now()
	return t
}

// SetMaxMbps updates the throttle ceiling. The server's handling of the
// client's Mbps control message does not call it; that message adjusts the
// encoder's bitrate ceiling instead.
func (t *Throttler) SetMaxMbps(maxMbps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if maxMbps <= 0 {
		t.maxBytesPerWindow = 0
		return
	}
	bitsPerSec := maxMbps * 1_000_000
	t.maxBytesPerWindow = int64(bitsPerSec * window.Seconds() / 8)
}

// AwaitBytes blocks until n bytes may be sent without exceeding the current
// window's budget, then records them as sent. If no ceiling is configured it
// returns immediately.
func (t *Throttler) AwaitBytes(n int) {
	for {
		t.mu.Lock()
		if t.maxBytesPerWindow <= 0 {
			t.mu.Unlock()
			return
		}

		now := t.now()
		if elapsed := now.Sub(t.windowStart); elapsed >= window {
			t.windowStart = now
			t.sentInWindow = 0
		}

		if t.sentInWindow+int64(n) <= t.maxBytesPerWindow {
			t.sentInWindow += int64(n)
			t.mu.Unlock()
			return
		}

		sleepFor := window - now.Sub(t.windowStart)
		t.mu.Unlock()
		if sleepFor > 0 {
			time.Sleep(sleepFor)
		}
	}
}
