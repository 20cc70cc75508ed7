package throttle

import (
	"testing"
	"time"
)

func TestAwaitBytesDisabledWhenNoCeiling(t *testing.T) {
	th := New(0)
	done := make(chan struct{})
	go func() {
		th.AwaitBytes(10_000_000)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitBytes blocked with no ceiling configured")
	}
}

func TestAwaitBytesStaysWithinWindowBudget(t *testing.T) {
	th := New(10) // 10 Mbps => 6250 bytes per 5ms window
	fakeNow := time.Now()
	th.now = func() time.Time { return fakeNow }
	th.windowStart = fakeNow

	budget := th.maxBytesPerWindow
	if budget != 6250 {
		t.Fatalf("maxBytesPerWindow = %d, want 6250", budget)
	}

	th.AwaitBytes(int(budget))
	if th.sentInWindow != budget {
		t.Fatalf("sentInWindow = %d, want %d", th.sentInWindow, budget)
	}

	// Next call with the same fake clock must block until the window is
	// manually rolled forward, since the budget is exhausted.
	unblocked := make(chan struct{})
	go func() {
		th.AwaitBytes(1)
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("AwaitBytes returned before the window rolled over")
	case <-time.After(50 * time.Millisecond):
	}

	th.mu.Lock()
	fakeNow = fakeNow.Add(window)
	th.mu.Unlock()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("AwaitBytes never unblocked after the window rolled over")
	}
}

func TestSetMaxMbpsUpdatesBudget(t *testing.T) {
	th := New(10)
	th.SetMaxMbps(20)
	if th.maxBytesPerWindow != 12500 {
		t.Fatalf("maxBytesPerWindow = %d, want 12500", th.maxBytesPerWindow)
	}
	th.SetMaxMbps(0)
	if th.maxBytesPerWindow != 0 {
		t.Fatalf("maxBytesPerWindow = %d, want 0 (disabled)", th.maxBytesPerWindow)
	}
}
