package mediaserver

import (
	"testing"
	"time"

	"github.com/skylinewire/streamd/internal/session"
	"github.com/skylinewire/streamd/internal/workerpool"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	mgr := session.NewManager(1, session.NewPortMapping(1, 20000), []byte("0123456789abcdef"))
	p, err := NewPipeline(mgr, nil, PipelineConfig{FPS: 30, MinFPS: 2, Codec: CodecH264, Bitrate: 2_000_000})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipelineTick_SendsFirstFrameThenSkipsUnchanged(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	interval := time.Second / 30
	minInterval := time.Second / 2

	p.tick(interval, minInterval)
	firstEncoded := p.metrics.FramesEncoded
	if firstEncoded != 1 {
		t.Fatalf("expected 1 encoded frame after first tick, got %d", firstEncoded)
	}

	// Force enough elapsed time for the next tick to be eligible, but the
	// captured frame content (a blank placeholder image) is unchanged, so
	// it should be recorded as skipped rather than encoded again.
	p.lastCapture = time.Now().Add(-2 * interval)
	p.tick(interval, minInterval)
	if p.metrics.FramesEncoded != 1 {
		t.Fatalf("expected unchanged frame to be skipped, FramesEncoded=%d", p.metrics.FramesEncoded)
	}
	if p.metrics.FramesSkipped == 0 {
		t.Fatal("expected FramesSkipped to be recorded")
	}
}

func TestPipelineTick_KeepAliveFiresEvenWithoutChange(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	interval := time.Second / 30
	minInterval := 5 * time.Millisecond

	p.tick(interval, minInterval)

	// Elapse past both intervals with an unchanged frame: the keep-alive
	// cadence should still force a send even though the diff says no change.
	p.lastCapture = time.Now().Add(-2 * interval)
	p.lastKeepAlive = time.Now().Add(-2 * minInterval)
	p.tick(interval, minInterval)

	if p.metrics.FramesSent != 2 {
		t.Fatalf("expected keep-alive to force a second send, FramesSent=%d", p.metrics.FramesSent)
	}
}

func TestPipelineRequestIFrame_BypassesDiffAndFlushes(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	interval := time.Second / 30
	minInterval := time.Second / 2

	p.tick(interval, minInterval)
	p.lastCapture = time.Now().Add(-2 * interval)

	p.RequestIFrame()
	if !p.wantsIFrame.Load() {
		t.Fatal("expected wantsIFrame to be set")
	}
	p.tick(interval, minInterval)

	if p.metrics.FramesSent != 2 {
		t.Fatalf("expected forced iframe to be sent even though content is unchanged, FramesSent=%d", p.metrics.FramesSent)
	}
	if p.wantsIFrame.Load() {
		t.Fatal("expected wantsIFrame to be cleared after being honored")
	}
}

func TestPipelineEncoderRebuild_SynchronousWithoutPool(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	original := p.encoder
	p.requestEncoderRebuild()

	if encoderState(p.state.Load()) != encoderReady {
		t.Fatalf("expected state=ready after synchronous rebuild, got %d", p.state.Load())
	}

	p.maybeSwapEncoder()
	if p.encoder == original {
		t.Fatal("expected encoder to be swapped for a new instance")
	}
}

func TestPipelineEncoderRebuild_AsyncViaWorkerPool(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	pool := workerpool.New(2, 4)
	p.pool = pool
	original := p.encoder

	p.requestEncoderRebuild()

	deadline := time.Now().Add(time.Second)
	for encoderState(p.state.Load()) != encoderReady && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if encoderState(p.state.Load()) != encoderReady {
		t.Fatal("encoder rebuild never completed via worker pool")
	}

	p.maybeSwapEncoder()
	if p.encoder == original {
		t.Fatal("expected encoder to be swapped for a new instance built by the pool")
	}
}

func TestPipelineEncoderRebuild_IgnoresConcurrentRequest(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	p.state.Store(int32(encoderPending))
	p.requestEncoderRebuild() // should be a no-op: already pending

	p.pendingMu.Lock()
	pending := p.pendingEnc
	p.pendingMu.Unlock()
	if pending != nil {
		t.Fatal("expected no rebuild to be queued while already pending")
	}
}

func TestPipelineRebuildCapturer_ResetsDifferAndForcesIFrame(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	interval := time.Second / 30
	minInterval := time.Second / 2
	p.tick(interval, minInterval)

	if err := p.RebuildCapturer(1280, 720); err != nil {
		t.Fatalf("RebuildCapturer: %v", err)
	}
	if !p.wantsIFrame.Load() {
		t.Fatal("expected dimension change to force a keyframe")
	}

	w, h, err := p.capturer.GetScreenBounds()
	if err != nil {
		t.Fatalf("GetScreenBounds: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Fatalf("expected resized capturer 1280x720, got %dx%d", w, h)
	}
}

func TestOnCaptureFailure_TracksConsecutiveFailures(t *testing.T) {
	p := newTestPipeline(t)
	defer p.Stop()

	p.onCaptureFailure(ErrNotSupported)
	p.onCaptureFailure(ErrNotSupported)
	p.onCaptureFailure(ErrNotSupported)

	if p.consecutiveFailures != 3 {
		t.Fatalf("expected consecutiveFailures=3, got %d", p.consecutiveFailures)
	}
}
