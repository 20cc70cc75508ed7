// Package mediaserver implements the server side of the media pipeline:
// capture, encode, fragment and broadcast video toward every active client,
// gating on target frame interval, dimension changes and forced keyframes,
// and rebuilding the encoder asynchronously so the capture loop never
// blocks on encoder init.
package mediaserver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skylinewire/streamd/internal/fragment"
	"github.com/skylinewire/streamd/internal/logging"
	"github.com/skylinewire/streamd/internal/session"
	"github.com/skylinewire/streamd/internal/wire"
	"github.com/skylinewire/streamd/internal/workerpool"
)

var log = logging.L("mediaserver")

// encoderState is the Idle → Pending → Ready → Idle state machine driving
// asynchronous encoder rebuilds.
type encoderState int32

const (
	encoderIdle encoderState = iota
	encoderPending
	encoderReady
)

// PipelineConfig configures a Pipeline's target cadence and codec.
type PipelineConfig struct {
	FPS     int // target frames/sec when the desktop is actively changing
	MinFPS  int // keep-alive cadence even with no changes
	Width   int
	Height  int
	Codec   Codec
	Bitrate int
}

// Pipeline owns the single Capturer/Encoder pair shared by every client
// slot and drives the capture → diff → encode → fragment → broadcast loop.
type Pipeline struct {
	mgr  *session.Manager
	pool *workerpool.Pool

	mu       sync.Mutex
	capturer ScreenCapturer
	encoder  *VideoEncoder

	pendingMu  sync.Mutex
	pendingEnc *VideoEncoder

	state atomic.Int32 // encoderState

	differ   *frameDiffer
	metrics  *StreamMetrics
	adaptive *AdaptiveBitrate

	replay      *fragment.ReplayCache
	nextID      atomic.Int32
	audioCap    AudioCapturer
	audioReplay *fragment.ReplayCache
	audioNextID atomic.Int32

	cfg         PipelineConfig
	wantsIFrame atomic.Bool

	lastCapture         time.Time
	lastKeepAlive       time.Time
	consecutiveFailures int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewPipeline builds the capturer and first encoder for cfg and wires them
// to mgr, whose active slots receive every broadcast frame.
func NewPipeline(mgr *session.Manager, pool *workerpool.Pool, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.MinFPS <= 0 {
		cfg.MinFPS = 2
	}

	capturer, err := NewScreenCapturer(CaptureConfig{DisplayIndex: 0, ScaleFactor: 1.0})
	if err != nil {
		return nil, err
	}

	encCfg := DefaultEncoderConfig()
	if cfg.Codec != "" {
		encCfg.Codec = cfg.Codec
	}
	if cfg.Bitrate > 0 {
		encCfg.Bitrate = cfg.Bitrate
	}
	encCfg.FPS = cfg.FPS
	encoder, err := NewVideoEncoder(encCfg)
	if err != nil {
		capturer.Close()
		return nil, err
	}

	p := &Pipeline{
		mgr:         mgr,
		pool:        pool,
		capturer:    capturer,
		encoder:     encoder,
		differ:      newFrameDiffer(),
		metrics:     newStreamMetrics(),
		replay:      fragment.NewReplayCache(25, 500),
		audioReplay: fragment.NewReplayCache(100, 3),
		audioCap:    newPlaceholderAudioCapturer(),
		cfg:         cfg,
		done:        make(chan struct{}),
	}
	p.state.Store(int32(encoderIdle))

	adaptive, err := NewAdaptiveBitrate(AdaptiveConfig{
		Encoder:        encoder,
		InitialBitrate: encCfg.Bitrate,
		MinBitrate:     500_000,
		MaxBitrate:     encCfg.Bitrate * 4,
		MaxFPS:         cfg.FPS,
	})
	if err != nil {
		capturer.Close()
		encoder.Close()
		return nil, err
	}
	p.adaptive = adaptive

	return p, nil
}

// RequestIFrame sets the force-keyframe flag the next capture iteration
// will honor and clear.
func (p *Pipeline) RequestIFrame() {
	p.wantsIFrame.Store(true)
}

// Metrics returns a point-in-time snapshot for telemetry/logging.
func (p *Pipeline) Metrics() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// Run drives the capture loop until stop is closed. It also starts the
// audio capturer, whose callback fragments and broadcasts frames
// independently of the video cadence.
func (p *Pipeline) Run(stop <-chan struct{}) {
	p.wg.Add(1)
	defer p.wg.Done()

	if p.audioCap != nil {
		if err := p.audioCap.Start(p.onAudioFrame); err != nil {
			log.Warn("audio capture start failed", "error", err)
		}
	}

	interval := time.Second / time.Duration(p.cfg.FPS)
	minInterval := time.Second / time.Duration(p.cfg.MinFPS)
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.tick(interval, minInterval)
		}
	}
}

// Stop halts the capture loop and releases the capturer and encoder.
func (p *Pipeline) Stop() {
	if p.audioCap != nil {
		p.audioCap.Stop()
	}
	close(p.done)
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.capturer != nil {
		p.capturer.Close()
	}
	if p.encoder != nil {
		p.encoder.Close()
	}
}

func (p *Pipeline) tick(interval, minInterval time.Duration) {
	now := time.Now()
	wantsIFrame := p.wantsIFrame.Load()

	sinceCapture := now.Sub(p.lastCapture)
	sinceKeepAlive := now.Sub(p.lastKeepAlive)
	if sinceCapture < interval && sinceKeepAlive < minInterval && !wantsIFrame {
		return
	}

	p.maybeSwapEncoder()

	p.mu.Lock()
	capturer := p.capturer
	encoder := p.encoder
	p.mu.Unlock()

	start := time.Now()
	img, err := capturer.Capture()
	if err != nil {
		p.onCaptureFailure(err)
		return
	}
	p.consecutiveFailures = 0
	p.lastCapture = now
	p.metrics.RecordCapture(time.Since(start))

	if img == nil {
		return
	}
	changed := true
	if hinter, ok := capturer.(FrameChangeHint); ok {
		changed = p.differ.HasChangedHint(hinter.AccumulatedFrames())
	} else {
		changed = p.differ.HasChanged(img.Pix)
	}
	if !wantsIFrame && !changed {
		p.metrics.RecordSkip()
		if sinceKeepAlive < minInterval {
			return
		}
	}
	p.lastKeepAlive = now

	if wantsIFrame {
		encoder.Flush()
		if err := encoder.ForceKeyframe(); err != nil {
			log.Warn("force keyframe failed", "error", err)
		}
		p.wantsIFrame.Store(false)
	}

	encodeStart := time.Now()
	encoded, err := encoder.Encode(img.Pix)
	if err != nil {
		log.Warn("encode failed", "error", err)
		p.requestEncoderRebuild()
		return
	}
	p.metrics.RecordEncode(time.Since(encodeStart), len(encoded))

	frame := wire.Frame{
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		Codec:     wireCodec(p.cfg.Codec),
		IsIFrame:  wantsIFrame,
		VideoData: encoded,
	}
	envelope, err := frame.Marshal()
	if err != nil {
		log.Warn("frame envelope assembly failed", "error", err)
		return
	}

	id := p.nextID.Add(1)
	fragments := fragment.Split(wire.PacketVideo, id, envelope)
	for _, f := range fragments {
		p.replay.Store(f.ID, f.Index, f.Data)
		p.mgr.BroadcastUDP(f)
	}
	sentAt := time.Now()
	p.metrics.RecordSend(len(envelope))

	if p.adaptive != nil {
		p.adaptive.RecordFrame(len(envelope), sentAt)
		p.metrics.RecordBitrate(p.adaptive.CurrentBitrate())
	}
}

// onAudioFrame is the AudioCapturer callback: it wraps each raw audio frame
// in the wire.AudioFrame envelope, fragments it, and broadcasts it the same
// way video frames are, using its own id counter and replay lane.
func (p *Pipeline) onAudioFrame(data []byte) {
	frame := wire.AudioFrame{EncodedData: data}
	id := p.audioNextID.Add(1)
	fragments := fragment.Split(wire.PacketAudio, id, frame.EncodedData)
	for _, f := range fragments {
		p.audioReplay.Store(f.ID, f.Index, f.Data)
		p.mgr.BroadcastUDP(f)
	}
}

func (p *Pipeline) onCaptureFailure(err error) {
	p.consecutiveFailures++
	log.Warn("capture failed", "error", err, "consecutiveFailures", p.consecutiveFailures)
	p.requestEncoderRebuild()
	if p.consecutiveFailures >= 3 {
		log.Error("repeated capture failures, continuing with stale capturer", "count", p.consecutiveFailures)
	}
}

// requestEncoderRebuild asks the worker pool to build a replacement encoder
// asynchronously; the capture loop keeps using the current one until the
// replacement is ready.
func (p *Pipeline) requestEncoderRebuild() {
	if !p.state.CompareAndSwap(int32(encoderIdle), int32(encoderPending)) {
		return
	}
	p.mu.Lock()
	cfg := DefaultEncoderConfig()
	cfg.Codec = p.cfg.Codec
	p.mu.Unlock()

	submit := func() {
		enc, err := NewVideoEncoder(cfg)
		if err != nil {
			log.Warn("encoder rebuild failed", "error", err)
			p.state.Store(int32(encoderIdle))
			return
		}
		p.pendingMu.Lock()
		p.pendingEnc = enc
		p.pendingMu.Unlock()
		p.state.Store(int32(encoderReady))
	}
	if p.pool == nil || !p.pool.Submit(submit) {
		submit()
	}
}

// maybeSwapEncoder installs a rebuilt encoder if one became ready, without
// holding a lock across the build itself.
func (p *Pipeline) maybeSwapEncoder() {
	if encoderState(p.state.Load()) != encoderReady {
		return
	}
	p.pendingMu.Lock()
	pending := p.pendingEnc
	p.pendingEnc = nil
	p.pendingMu.Unlock()
	if pending == nil {
		return
	}

	p.mu.Lock()
	old := p.encoder
	p.encoder = pending
	p.mu.Unlock()
	p.state.Store(int32(encoderIdle))
	if old != nil {
		old.Close()
	}
}

// RebuildCapturer replaces the Capturer on a Dimensions change.
func (p *Pipeline) RebuildCapturer(width, height int) error {
	newCapturer, err := NewScreenCapturer(CaptureConfig{DisplayIndex: 0, ScaleFactor: 1.0})
	if err != nil {
		return err
	}
	if resizer, ok := newCapturer.(interface{ Resize(int, int) }); ok {
		resizer.Resize(width, height)
	}

	p.mu.Lock()
	old := p.capturer
	p.capturer = newCapturer
	p.mu.Unlock()
	if old != nil {
		old.Close()
	}
	p.differ.Reset()
	p.wantsIFrame.Store(true)
	return nil
}

func wireCodec(c Codec) wire.Codec {
	switch c {
	case CodecVP8:
		return wire.CodecVP8
	case CodecVP9:
		return wire.CodecVP9
	case CodecH265:
		return wire.CodecH265
	default:
		return wire.CodecH264
	}
}
