package mediaserver

import (
	"testing"
	"time"
)

// stubEncoder satisfies encoderBackend for testing adaptive bitrate.
type stubEncoder struct {
	bitrate int
}

func (s *stubEncoder) Encode([]byte) ([]byte, error)    { return nil, nil }
func (s *stubEncoder) SetCodec(Codec) error             { return nil }
func (s *stubEncoder) SetQuality(QualityPreset) error   { return nil }
func (s *stubEncoder) SetBitrate(b int) error           { s.bitrate = b; return nil }
func (s *stubEncoder) SetFPS(int) error                 { return nil }
func (s *stubEncoder) SetDimensions(int, int) error     { return nil }
func (s *stubEncoder) SetPixelFormat(PixelFormat)       {}
func (s *stubEncoder) Close() error                     { return nil }
func (s *stubEncoder) Name() string                     { return "stub" }
func (s *stubEncoder) IsHardware() bool                 { return false }

func newTestAdaptive(initial, min, max int, worstFPS float64, threshold int) (*AdaptiveBitrate, *stubEncoder) {
	stub := &stubEncoder{bitrate: initial}
	enc := &VideoEncoder{backend: stub, cfg: EncoderConfig{Bitrate: initial}}
	a, err := NewAdaptiveBitrate(AdaptiveConfig{
		Encoder:        enc,
		InitialBitrate: initial,
		MinBitrate:     min,
		MaxBitrate:     max,
		WorstFPS:       worstFPS,
		Threshold:      threshold,
	})
	if err != nil {
		panic(err)
	}
	return a, stub
}

func TestAdaptive_InitialBitrateMatchesEncoder(t *testing.T) {
	a, stub := newTestAdaptive(2_500_000, 500_000, 8_000_000, 40, 20)
	if a.CurrentBitrate() != 2_500_000 {
		t.Fatalf("expected currentBitrate=2500000, got %d", a.CurrentBitrate())
	}
	if stub.bitrate != 2_500_000 {
		t.Fatalf("expected encoder seeded at 2500000, got %d", stub.bitrate)
	}
}

func TestAdaptive_FirstFrameEstablishesBaselineOnly(t *testing.T) {
	a, stub := newTestAdaptive(2_000_000, 500_000, 8_000_000, 40, 20)

	start := time.Now()
	// A single frame, however large, can't trigger anything: there is no
	// previous frame to measure wall time against yet.
	a.RecordFrame(4_000_000, start)
	if stub.bitrate != 2_000_000 {
		t.Fatalf("bitrate changed on first frame: %d", stub.bitrate)
	}
}

func TestAdaptive_FastFramesDoNotDegrade(t *testing.T) {
	a, stub := newTestAdaptive(2_000_000, 500_000, 8_000_000, 40, 20)

	// Small frames spaced at 60fps: transmit time at 2Mbps is tiny, well
	// above the 40fps floor, so the bitrate should never move.
	now := time.Now()
	for i := 0; i < 40; i++ {
		now = now.Add(time.Second / 60)
		a.RecordFrame(2_000, now)
	}
	if stub.bitrate != 2_000_000 {
		t.Fatalf("bitrate degraded despite healthy transmit times: %d", stub.bitrate)
	}
}

func TestAdaptive_SustainedShortfallReducesBitrate(t *testing.T) {
	// worstFPS=40 means effectiveSeconds must stay under 0.025s. A 300KB
	// frame at 2Mbps takes 300_000*8/2_000_000 = 1.2s to transmit — far
	// below the floor — so once the run exceeds the threshold the bitrate
	// must drop.
	a, stub := newTestAdaptive(2_000_000, 500_000, 8_000_000, 40, 20)

	now := time.Now()
	for i := 0; i < 25; i++ {
		now = now.Add(5 * time.Millisecond)
		a.RecordFrame(300_000, now)
	}
	if stub.bitrate >= 2_000_000 {
		t.Fatalf("expected bitrate to drop after sustained shortfall, got %d", stub.bitrate)
	}
}

func TestAdaptive_ShortfallResetsOnOneGoodFrame(t *testing.T) {
	a, stub := newTestAdaptive(2_000_000, 500_000, 8_000_000, 40, 20)

	now := time.Now()
	for i := 0; i < 19; i++ {
		now = now.Add(5 * time.Millisecond)
		a.RecordFrame(300_000, now)
	}
	if stub.bitrate != 2_000_000 {
		t.Fatalf("bitrate moved before threshold was reached: %d", stub.bitrate)
	}

	// One healthy frame clears the run; the bad streak has to start over.
	now = now.Add(time.Second / 60)
	a.RecordFrame(100, now)
	if stub.bitrate != 2_000_000 {
		t.Fatalf("bitrate moved on the recovering frame: %d", stub.bitrate)
	}

	for i := 0; i < 19; i++ {
		now = now.Add(5 * time.Millisecond)
		a.RecordFrame(300_000, now)
	}
	if stub.bitrate != 2_000_000 {
		t.Fatalf("bitrate dropped even though the bad run was reset, got %d", stub.bitrate)
	}
}

func TestAdaptive_FloorClampsReduction(t *testing.T) {
	a, stub := newTestAdaptive(600_000, 500_000, 8_000_000, 40, 20)

	now := time.Now()
	for i := 0; i < 200; i++ {
		now = now.Add(5 * time.Millisecond)
		a.RecordFrame(300_000, now)
	}
	if stub.bitrate < 500_000 {
		t.Fatalf("went below floor: %d", stub.bitrate)
	}
}

func TestAdaptive_SetMaxBitrateClampsDown(t *testing.T) {
	a, stub := newTestAdaptive(5_000_000, 500_000, 8_000_000, 40, 20)

	a.SetMaxBitrate(3_000_000)
	if stub.bitrate != 3_000_000 {
		t.Fatalf("expected clamp to 3M, got %d", stub.bitrate)
	}
	if a.CurrentBitrate() != 3_000_000 {
		t.Fatalf("expected CurrentBitrate=3M, got %d", a.CurrentBitrate())
	}
}
