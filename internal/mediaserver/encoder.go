package mediaserver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Codec identifies the video codec an encoder backend produces.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
	CodecVP9  Codec = "vp9"
	CodecVP8  Codec = "vp8"
	CodecAV1  Codec = "av1"
)

// QualityPreset is a coarse encoder quality knob, independent of the
// adaptive bitrate controller's per-frame target.
type QualityPreset string

const (
	QualityAuto   QualityPreset = "auto"
	QualityLow    QualityPreset = "low"
	QualityMedium QualityPreset = "medium"
	QualityHigh   QualityPreset = "high"
	QualityUltra  QualityPreset = "ultra"
)

// PixelFormat describes the input pixel byte order a capturer hands the
// encoder.
type PixelFormat int

const (
	PixelFormatRGBA PixelFormat = iota
	PixelFormatBGRA
)

var (
	ErrInvalidCodec   = errors.New("invalid codec")
	ErrInvalidQuality = errors.New("invalid quality preset")
	ErrInvalidBitrate = errors.New("invalid bitrate")
	ErrInvalidFPS     = errors.New("invalid fps")
)

// EncoderConfig parameterizes a VideoEncoder.
type EncoderConfig struct {
	Codec   Codec
	Quality QualityPreset
	Bitrate int
	FPS     int
}

func DefaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Codec:   CodecH264,
		Quality: QualityAuto,
		Bitrate: 2_500_000,
		FPS:     30,
	}
}

// VideoEncoder wraps a single encoderBackend, serializing access to it and
// tracking the last-applied config so callers can read it back without
// reaching into the backend.
type VideoEncoder struct {
	mu      sync.Mutex
	cfg     EncoderConfig
	backend encoderBackend
}

// optionalKeyframeForcer is implemented by backends that can force the next
// output to be a keyframe, used for forced refreshes after a dimension
// change or an explicit client IFrameRequest.
type optionalKeyframeForcer interface {
	ForceKeyframe() error
}

type encoderBackend interface {
	Encode(frame []byte) ([]byte, error)
	SetCodec(codec Codec) error
	SetQuality(quality QualityPreset) error
	SetBitrate(bitrate int) error
	SetFPS(fps int) error
	SetDimensions(width, height int) error
	SetPixelFormat(pf PixelFormat)
	Close() error
	Name() string
	IsHardware() bool
}

// NewVideoEncoder builds the encoder for cfg. Only a software backend is
// currently wired; a hardware path (VAAPI/NVENC/VideoToolbox) would plug in
// as an alternate newBackend branch without changing this type's surface.
func NewVideoEncoder(cfg EncoderConfig) (*VideoEncoder, error) {
	cfg = applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	backend, err := newSoftwareEncoder(cfg)
	if err != nil {
		return nil, err
	}

	return &VideoEncoder{
		cfg:     cfg,
		backend: backend,
	}, nil
}

func (v *VideoEncoder) Encode(frame []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return nil, errors.New("encoder not initialized")
	}
	return v.backend.Encode(frame)
}

func (v *VideoEncoder) SetCodec(codec Codec) error {
	if !codec.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCodec, codec)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.backend.SetCodec(codec); err != nil {
		return err
	}
	v.cfg.Codec = codec
	return nil
}

func (v *VideoEncoder) SetQuality(quality QualityPreset) error {
	if !quality.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, quality)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.backend.SetQuality(quality); err != nil {
		return err
	}
	v.cfg.Quality = quality
	return nil
}

func (v *VideoEncoder) SetBitrate(bitrate int) error {
	if bitrate <= 0 {
		return ErrInvalidBitrate
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.backend.SetBitrate(bitrate); err != nil {
		return err
	}
	v.cfg.Bitrate = bitrate
	return nil
}

func (v *VideoEncoder) SetFPS(fps int) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.backend.SetFPS(fps); err != nil {
		return err
	}
	v.cfg.FPS = fps
	return nil
}

func (v *VideoEncoder) SetDimensions(width, height int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.backend.SetDimensions(width, height)
}

func (v *VideoEncoder) SetPixelFormat(pf PixelFormat) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend != nil {
		v.backend.SetPixelFormat(pf)
	}
}

func (v *VideoEncoder) Close() error {
	v.mu.Lock()
	backend := v.backend
	v.backend = nil
	v.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Close()
}

// Flush asks the backend to drop any buffered frames if it implements
// Flush() error, and is a no-op otherwise. It does not force a keyframe;
// the pipeline calls ForceKeyframe separately whenever an I-frame is wanted
// (an IFrameRequest or a dimension change).
func (v *VideoEncoder) Flush() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return
	}
	type flusher interface{ Flush() error }
	if f, ok := v.backend.(flusher); ok {
		if err := f.Flush(); err != nil {
			slog.Warn("encoder flush failed", "error", err)
		}
	}
}

// ForceKeyframe requests an IDR/keyframe as soon as possible. A no-op if
// the backend doesn't implement optionalKeyframeForcer.
func (v *VideoEncoder) ForceKeyframe() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return errors.New("encoder not initialized")
	}
	if kf, ok := v.backend.(optionalKeyframeForcer); ok {
		return kf.ForceKeyframe()
	}
	return nil
}

func (v *VideoEncoder) BackendName() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return ""
	}
	return v.backend.Name()
}

func (v *VideoEncoder) BackendIsHardware() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend == nil {
		return false
	}
	return v.backend.IsHardware()
}

func (c Codec) valid() bool {
	switch c {
	case CodecH264, CodecH265, CodecVP9, CodecVP8, CodecAV1:
		return true
	default:
		return false
	}
}

func (q QualityPreset) valid() bool {
	switch q {
	case QualityAuto, QualityLow, QualityMedium, QualityHigh, QualityUltra:
		return true
	default:
		return false
	}
}

func applyDefaults(cfg EncoderConfig) EncoderConfig {
	defaults := DefaultEncoderConfig()
	if cfg.Codec == "" {
		cfg.Codec = defaults.Codec
	}
	if cfg.Quality == "" {
		cfg.Quality = defaults.Quality
	}
	if cfg.Bitrate == 0 {
		cfg.Bitrate = defaults.Bitrate
	}
	if cfg.FPS == 0 {
		cfg.FPS = defaults.FPS
	}
	return cfg
}

func validateConfig(cfg EncoderConfig) error {
	if !cfg.Codec.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCodec, cfg.Codec)
	}
	if !cfg.Quality.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, cfg.Quality)
	}
	if cfg.Bitrate <= 0 {
		return ErrInvalidBitrate
	}
	if cfg.FPS <= 0 {
		return ErrInvalidFPS
	}
	return nil
}
