package mediaserver

import (
	"errors"
	"sync"
	"time"
)

// AdaptiveConfig configures an AdaptiveBitrate controller.
type AdaptiveConfig struct {
	Encoder *VideoEncoder

	InitialBitrate int
	MinBitrate     int
	MaxBitrate     int

	// WorstFPS is the floor below which the controller considers the link
	// unable to keep up at the current bitrate. Defaults to 40.
	WorstFPS float64

	// Threshold is how many consecutive below-floor frames must be observed
	// before the bitrate is reduced. Defaults to 20.
	Threshold int

	MaxFPS int
}

// AdaptiveBitrate throttles the encoder's target bitrate by comparing, frame
// by frame, how long a frame of the size just produced would take to
// transmit at the current bitrate against how long the pipeline actually
// took to get the previous frame out the door. When the resulting effective
// frame rate sits below WorstFPS for Threshold consecutive frames, the
// bitrate is cut proportionally to the shortfall and the run resets.
type AdaptiveBitrate struct {
	mu sync.Mutex

	encoder *VideoEncoder

	currentBitrate int
	minBitrate     int
	maxBitrate     int
	worstFPS       float64
	threshold      int
	maxFPS         int

	belowThreshold int
	haveLastFrame  bool
	lastFrameSize  int
	lastFrameAt    time.Time
}

// NewAdaptiveBitrate builds a controller seeded at cfg.InitialBitrate and
// pushes that value to cfg.Encoder immediately.
func NewAdaptiveBitrate(cfg AdaptiveConfig) (*AdaptiveBitrate, error) {
	if cfg.Encoder == nil {
		return nil, errors.New("adaptive bitrate: encoder is required")
	}
	if cfg.MinBitrate <= 0 || cfg.MaxBitrate <= 0 || cfg.MinBitrate > cfg.MaxBitrate {
		return nil, errors.New("adaptive bitrate: invalid min/max bitrate")
	}
	initial := cfg.InitialBitrate
	if initial <= 0 {
		initial = cfg.MaxBitrate
	}
	initial = clampInt(initial, cfg.MinBitrate, cfg.MaxBitrate)

	worstFPS := cfg.WorstFPS
	if worstFPS <= 0 {
		worstFPS = 40.0
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = 20
	}

	a := &AdaptiveBitrate{
		encoder:        cfg.Encoder,
		currentBitrate: initial,
		minBitrate:     cfg.MinBitrate,
		maxBitrate:     cfg.MaxBitrate,
		worstFPS:       worstFPS,
		threshold:      threshold,
		maxFPS:         cfg.MaxFPS,
	}
	if err := a.encoder.SetBitrate(initial); err != nil {
		return nil, err
	}
	return a, nil
}

// CurrentBitrate returns the controller's present target.
func (a *AdaptiveBitrate) CurrentBitrate() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentBitrate
}

// SetMaxFPS records a new target frame rate. The value is only stored;
// neither the controller nor the pipeline's capture cadence reads it.
func (a *AdaptiveBitrate) SetMaxFPS(fps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxFPS = fps
}

// SetMaxBitrate lowers or raises the ceiling, clamping the current target
// down immediately if it now exceeds the new maximum.
func (a *AdaptiveBitrate) SetMaxBitrate(max int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxBitrate = max
	if a.currentBitrate > max {
		a.currentBitrate = max
		a.encoder.SetBitrate(max)
	}
}

// RecordFrame is called once per frame sent, with the size of the frame just
// transmitted and the wall-clock time it was sent at. It implements the
// transmit-time-vs-wall-time comparison: a frame of size bytes would take
// size*8/currentBitrate seconds to push down the wire; if the pipeline is
// actually producing frames slower than that cadence allows, the effective
// frame rate the client is getting falls below what the current bitrate
// promises, and sustained shortfall (Threshold consecutive frames) triggers
// a proportional cut.
func (a *AdaptiveBitrate) RecordFrame(size int, sentAt time.Time) {
	if size <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.haveLastFrame {
		a.lastFrameSize = size
		a.lastFrameAt = sentAt
		a.haveLastFrame = true
		return
	}

	wallSeconds := sentAt.Sub(a.lastFrameAt).Seconds()
	a.lastFrameSize = size
	a.lastFrameAt = sentAt
	if wallSeconds <= 0 || a.currentBitrate <= 0 {
		return
	}

	transmitSeconds := float64(size) * 8.0 / float64(a.currentBitrate)
	effectiveSeconds := transmitSeconds
	if wallSeconds > effectiveSeconds {
		effectiveSeconds = wallSeconds
	}
	if effectiveSeconds <= 0 {
		return
	}
	effectiveFPS := 1.0 / effectiveSeconds

	if effectiveFPS >= a.worstFPS {
		a.belowThreshold = 0
		return
	}

	a.belowThreshold++
	if a.belowThreshold < a.threshold {
		return
	}

	ratio := effectiveFPS / a.worstFPS
	newBitrate := clampInt(int(ratio*float64(a.currentBitrate)), a.minBitrate, a.maxBitrate)
	a.belowThreshold = 0
	if newBitrate == a.currentBitrate {
		return
	}
	a.currentBitrate = newBitrate
	a.encoder.SetBitrate(newBitrate)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
