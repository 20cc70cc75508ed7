package mediaserver

import (
	"errors"
	"fmt"
	"sync"
)

// maxPlaceholderOutput bounds the placeholder "encoded" payload so it fits
// comfortably inside wire.LargestFrameSize alongside cursor and peer-cursor
// data; a real codec would compress far below this on its own.
const maxPlaceholderOutput = 256 * 1024

// softwareEncoder stands in for a real x264/vpx/x265 binding: it satisfies
// encoderBackend's full surface (codec/quality/bitrate/fps/dimension
// switches) so the rest of the pipeline — adaptive bitrate, dimension
// rebuilds, forced keyframes — is exercised end to end, without linking a
// real codec.
type softwareEncoder struct {
	mu  sync.Mutex
	cfg EncoderConfig
	pf  PixelFormat
}

func newSoftwareEncoder(cfg EncoderConfig) (encoderBackend, error) {
	return &softwareEncoder{cfg: cfg}, nil
}

func (s *softwareEncoder) Encode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, errors.New("empty frame")
	}
	n := len(frame)
	if n > maxPlaceholderOutput {
		n = maxPlaceholderOutput
	}
	out := make([]byte, n)
	copy(out, frame[:n])
	return out, nil
}

func (s *softwareEncoder) SetCodec(codec Codec) error {
	if !codec.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCodec, codec)
	}
	s.mu.Lock()
	s.cfg.Codec = codec
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetQuality(quality QualityPreset) error {
	if !quality.valid() {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, quality)
	}
	s.mu.Lock()
	s.cfg.Quality = quality
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetBitrate(bitrate int) error {
	if bitrate <= 0 {
		return ErrInvalidBitrate
	}
	s.mu.Lock()
	s.cfg.Bitrate = bitrate
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetFPS(fps int) error {
	if fps <= 0 {
		return ErrInvalidFPS
	}
	s.mu.Lock()
	s.cfg.FPS = fps
	s.mu.Unlock()
	return nil
}

func (s *softwareEncoder) SetDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("mediaserver: invalid dimensions %dx%d", width, height)
	}
	return nil
}

func (s *softwareEncoder) SetPixelFormat(pf PixelFormat) {
	s.mu.Lock()
	s.pf = pf
	s.mu.Unlock()
}

func (s *softwareEncoder) Close() error {
	return nil
}

func (s *softwareEncoder) Name() string {
	return "software"
}

func (s *softwareEncoder) IsHardware() bool {
	return false
}
