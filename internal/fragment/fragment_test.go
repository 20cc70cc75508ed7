package fragment

import (
	"bytes"
	"testing"
	"time"

	"github.com/skylinewire/streamd/internal/wire"
)

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x7A}, wire.MaxPayloadSize*3+17)
	fragments := Split(wire.PacketVideo, 42, payload)

	wantIndices := (len(payload) + wire.MaxPayloadSize - 1) / wire.MaxPayloadSize
	if len(fragments) != wantIndices {
		t.Fatalf("len(fragments) = %d, want %d", len(fragments), wantIndices)
	}

	r := New(time.Second, nil)
	var got []byte
	for i, f := range fragments {
		reassembled, done := r.Feed(f)
		if i < len(fragments)-1 && done {
			t.Fatalf("Feed reported done before all fragments arrived (index %d)", i)
		}
		if done {
			got = reassembled
		}
	}
	if got == nil {
		t.Fatal("reassembly never completed")
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled payload mismatch")
	}
}

func TestReassembleExactPayload(t *testing.T) {
	payload := []byte("a short control message")
	fragments := Split(wire.PacketMessage, 1, payload)
	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment for short payload, got %d", len(fragments))
	}

	r := New(time.Second, nil)
	got, done := r.Feed(fragments[0])
	if !done {
		t.Fatal("single-fragment payload should complete immediately")
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestDuplicateFragmentIsIdempotent(t *testing.T) {
	payload := bytes.Repeat([]byte{1, 2, 3}, wire.MaxPayloadSize)
	fragments := Split(wire.PacketVideo, 7, payload)

	r := New(time.Second, nil)
	for _, f := range fragments[:len(fragments)-1] {
		r.Feed(f)
		r.Feed(f) // duplicate
	}
	got, done := r.Feed(fragments[len(fragments)-1])
	if !done {
		t.Fatal("expected reassembly to complete")
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled payload mismatch after duplicate fragment")
	}
}

func TestOutOfOrderArrivalTriggersNack(t *testing.T) {
	payload := bytes.Repeat([]byte{9}, wire.MaxPayloadSize*2)
	lowID := Split(wire.PacketVideo, 1, payload)
	highID := Split(wire.PacketVideo, 2, payload)

	var nacked []uint16
	r := New(time.Second, func(id int32, index uint16) {
		if id == 1 {
			nacked = append(nacked, index)
		}
	})

	// Feed only the first fragment of id=1 (leaving it incomplete), then
	// a fragment of id=2: this should trigger a NACK for the still-missing
	// index of id=1.
	r.Feed(lowID[0])
	r.Feed(highID[0])

	if len(nacked) == 0 {
		t.Fatal("expected a NACK for the incomplete lower id")
	}
}

func TestSweepEvictsStaleState(t *testing.T) {
	payload := bytes.Repeat([]byte{5}, wire.MaxPayloadSize*2)
	fragments := Split(wire.PacketVideo, 3, payload)

	r := New(10*time.Millisecond, nil)
	r.Feed(fragments[0]) // leave incomplete

	if r.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", r.Pending())
	}

	time.Sleep(20 * time.Millisecond)
	r.Sweep()

	if r.Pending() != 0 {
		t.Fatalf("Pending() after Sweep = %d, want 0", r.Pending())
	}
}

func TestReplayCacheStoresAndEvicts(t *testing.T) {
	c := NewReplayCache(2, 4)
	c.Store(1, 0, []byte("a"))
	c.Store(2, 0, []byte("b"))
	c.Store(3, 0, []byte("c")) // evicts id=1

	if _, ok := c.Lookup(1, 0); ok {
		t.Fatal("expected id=1 to be evicted")
	}
	data, ok := c.Lookup(3, 0)
	if !ok || string(data) != "c" {
		t.Fatalf("Lookup(3,0) = %q, %v, want \"c\", true", data, ok)
	}
}

func TestReplayCacheCapsFragmentsPerID(t *testing.T) {
	c := NewReplayCache(1, 2)
	c.Store(1, 0, []byte("a"))
	c.Store(1, 1, []byte("b"))
	c.Store(1, 2, []byte("c")) // over cap, dropped

	if _, ok := c.Lookup(1, 2); ok {
		t.Fatal("expected fragment beyond cap to be dropped")
	}
	if data, ok := c.Lookup(1, 0); !ok || string(data) != "a" {
		t.Fatalf("Lookup(1,0) = %q, %v", data, ok)
	}
}
