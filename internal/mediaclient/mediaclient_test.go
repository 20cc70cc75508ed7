package mediaclient

import (
	"testing"
	"time"

	"github.com/skylinewire/streamd/internal/wire"
)

func TestDecoderChain_UsesSoftwareWhenNoHardwareRegistered(t *testing.T) {
	c := NewDecoderChain(true)
	if c.BackendName() != "software" {
		t.Fatalf("expected software backend with no hardware factories, got %q", c.BackendName())
	}
}

func TestDecoderChain_DecodeRoundTrip(t *testing.T) {
	c := NewDecoderChain(false)
	frame, err := c.Decode([]byte{1, 2, 3, 4}, 64, 48, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Width != 64 || frame.Height != 48 {
		t.Fatalf("unexpected dimensions: %dx%d", frame.Width, frame.Height)
	}
	if len(frame.Pixels) != 4 {
		t.Fatalf("expected 4 bytes passed through, got %d", len(frame.Pixels))
	}
}

func TestDecoderChain_FallsBackStickyOnUnavailable(t *testing.T) {
	registerHardwareVideoDecoder(func() (VideoDecoder, error) {
		return &alwaysUnavailableDecoder{}, nil
	})
	c := NewDecoderChain(true)
	if c.BackendName() != "unavailable-stub" {
		t.Fatalf("expected stub hardware backend initially, got %q", c.BackendName())
	}

	if _, err := c.Decode([]byte{9}, 1, 1, false); err != nil {
		t.Fatalf("Decode after fallback should succeed via software: %v", err)
	}
	if c.BackendName() != "software" {
		t.Fatalf("expected sticky fallback to software, got %q", c.BackendName())
	}

	// Second decode must stay on software even though the original
	// hardware backend would (if retried) behave the same way.
	if _, err := c.Decode([]byte{9}, 1, 1, false); err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if c.BackendName() != "software" {
		t.Fatal("expected decoder to remain sticky on software")
	}
}

type alwaysUnavailableDecoder struct{}

func (d *alwaysUnavailableDecoder) Decode(payload []byte, width, height int, isIFrame bool) (DecodedFrame, error) {
	return DecodedFrame{}, ErrDecoderUnavailable
}
func (d *alwaysUnavailableDecoder) Name() string    { return "unavailable-stub" }
func (d *alwaysUnavailableDecoder) IsHardware() bool { return true }
func (d *alwaysUnavailableDecoder) Close() error     { return nil }

func TestLastFrameRenderer_RetainsLatestState(t *testing.T) {
	r := newLastFrameRenderer()
	r.RenderVideo(DecodedFrame{Width: 10, Height: 20})
	r.RenderCursor(&wire.CursorImage{Visible: true})
	r.RenderPeerCursors([]wire.PeerCursor{{ClientID: 1, X: 5, Y: 6}})

	if r.Frame.Width != 10 || r.Frame.Height != 20 {
		t.Fatal("expected last video frame retained")
	}
	if r.Cursor == nil || !r.Cursor.Visible {
		t.Fatal("expected cursor retained")
	}
	if len(r.PeerCursors) != 1 || r.PeerCursors[0].ClientID != 1 {
		t.Fatal("expected peer cursors retained")
	}
}

func TestClientMetrics_SnapshotReflectsRecordedSamples(t *testing.T) {
	m := newClientMetrics()
	m.RecordDecode(5*time.Millisecond, 100)
	m.RecordDecode(10*time.Millisecond, 200)
	m.RecordDrop()
	m.RecordRTT(42 * time.Millisecond)

	snap := m.Snapshot()
	if snap.FramesDecoded != 2 {
		t.Fatalf("expected FramesDecoded=2, got %d", snap.FramesDecoded)
	}
	if snap.FramesDropped != 1 {
		t.Fatalf("expected FramesDropped=1, got %d", snap.FramesDropped)
	}
	if snap.BytesReceived != 300 {
		t.Fatalf("expected BytesReceived=300, got %d", snap.BytesReceived)
	}
	if snap.RTTMs != 42.0 {
		t.Fatalf("expected RTTMs=42.0, got %v", snap.RTTMs)
	}
}

func TestClient_DecodeVideo_RendersReassembledFrame(t *testing.T) {
	c := &Client{
		decoders: NewDecoderChain(false),
		renderer: newLastFrameRenderer(),
		metrics:  newClientMetrics(),
	}

	frame := wire.Frame{
		Width:     320,
		Height:    240,
		Codec:     wire.CodecH264,
		IsIFrame:  true,
		VideoData: []byte{1, 2, 3, 4, 5},
	}
	envelope, err := frame.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	c.decodeVideo(envelope)

	renderer := c.renderer.(*lastFrameRenderer)
	if renderer.Frame.Width != 320 || renderer.Frame.Height != 240 {
		t.Fatalf("unexpected rendered dimensions: %dx%d", renderer.Frame.Width, renderer.Frame.Height)
	}
	if c.metrics.Snapshot().FramesDecoded != 1 {
		t.Fatal("expected FramesDecoded to be recorded")
	}
}

func TestClient_DecodeVideo_DropsMalformedEnvelope(t *testing.T) {
	c := &Client{
		decoders: NewDecoderChain(false),
		renderer: newLastFrameRenderer(),
		metrics:  newClientMetrics(),
	}
	c.decodeVideo([]byte{0x01, 0x02})
	if c.metrics.Snapshot().FramesDropped != 1 {
		t.Fatal("expected malformed envelope to be recorded as dropped")
	}
}

func TestClient_PingPongTracksRTT(t *testing.T) {
	c := &Client{
		metrics:  newClientMetrics(),
		inFlight: make(map[int32]time.Time),
	}
	c.pingMu.Lock()
	c.nextPing = 1
	c.inFlight[1] = time.Now().Add(-20 * time.Millisecond)
	c.pingMu.Unlock()

	c.onPong(1)

	snap := c.metrics.Snapshot()
	if snap.RTTMs < 15 {
		t.Fatalf("expected RTT to reflect elapsed time, got %v ms", snap.RTTMs)
	}

	c.pingMu.Lock()
	_, stillPending := c.inFlight[1]
	c.pingMu.Unlock()
	if stillPending {
		t.Fatal("expected pong to clear the in-flight entry")
	}
}
