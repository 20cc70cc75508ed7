// Package mediaclient implements the viewer side of the media pipeline:
// receiving fragmented video/audio packets, reassembling and decoding them,
// and handing decoded frames to a Renderer, with ping-based latency
// telemetry driving NACK and keep-alive bookkeeping.
package mediaclient

import (
	"errors"
	"sync"

	"github.com/skylinewire/streamd/internal/logging"
)

var log = logging.L("mediaclient")

// ErrDecoderUnavailable is returned by a hardware decoder backend that has
// lost its device context (e.g. a GPU reset) and cannot continue.
var ErrDecoderUnavailable = errors.New("mediaclient: decoder unavailable")

// VideoDecoder turns an encoded video payload into a displayable frame.
// Implementations mirror the server's placeholder encoder: a true codec
// implementation is out of scope, so DecodedFrame carries the payload
// through unchanged for the Renderer to display verbatim.
type VideoDecoder interface {
	Decode(payload []byte, width, height int, isIFrame bool) (DecodedFrame, error)
	Name() string
	IsHardware() bool
	Close() error
}

// DecodedFrame is a decoded video image ready for the Renderer.
type DecodedFrame struct {
	Width, Height int
	Pixels        []byte
}

// softwareVideoDecoder is the always-available fallback: it passes the
// payload through as if it were already raw pixel data, matching the
// server's placeholder software encoder.
type softwareVideoDecoder struct{}

func newSoftwareVideoDecoder() VideoDecoder { return &softwareVideoDecoder{} }

func (d *softwareVideoDecoder) Decode(payload []byte, width, height int, isIFrame bool) (DecodedFrame, error) {
	if len(payload) == 0 {
		return DecodedFrame{}, errors.New("mediaclient: empty video payload")
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return DecodedFrame{Width: width, Height: height, Pixels: out}, nil
}

func (d *softwareVideoDecoder) Name() string { return "software" }

func (d *softwareVideoDecoder) IsHardware() bool { return false }

func (d *softwareVideoDecoder) Close() error { return nil }

// hardwareDecoderFactory builds a hardware-backed VideoDecoder. None are
// registered in this build; the chain always falls back to software.
type hardwareDecoderFactory func() (VideoDecoder, error)

var (
	hardwareDecodersMu sync.Mutex
	hardwareDecoders   []hardwareDecoderFactory
)

func registerHardwareVideoDecoder(factory hardwareDecoderFactory) {
	hardwareDecodersMu.Lock()
	defer hardwareDecodersMu.Unlock()
	hardwareDecoders = append(hardwareDecoders, factory)
}

// DecoderChain tries a hardware decoder first and falls back to software on
// failure, becoming sticky at software once it falls back: a hardware
// decoder that failed once (e.g. a driver reset) is not retried for the
// life of the chain, since flapping between backends mid-stream produces
// worse artifacts than staying on software.
type DecoderChain struct {
	mu       sync.Mutex
	current  VideoDecoder
	sticky   bool
	preferHW bool
}

// NewDecoderChain builds a chain that prefers a hardware backend when one is
// registered and preferHardware is true, falling back to software otherwise.
func NewDecoderChain(preferHardware bool) *DecoderChain {
	c := &DecoderChain{preferHW: preferHardware}
	c.current = c.pickInitial()
	return c
}

func (c *DecoderChain) pickInitial() VideoDecoder {
	if !c.preferHW {
		return newSoftwareVideoDecoder()
	}
	hardwareDecodersMu.Lock()
	factories := append([]hardwareDecoderFactory(nil), hardwareDecoders...)
	hardwareDecodersMu.Unlock()
	for _, factory := range factories {
		dec, err := factory()
		if err == nil && dec != nil {
			return dec
		}
	}
	return newSoftwareVideoDecoder()
}

// Decode attempts the current backend; on ErrDecoderUnavailable it falls
// back to software permanently and retries once against the new backend.
func (c *DecoderChain) Decode(payload []byte, width, height int, isIFrame bool) (DecodedFrame, error) {
	c.mu.Lock()
	dec := c.current
	c.mu.Unlock()

	frame, err := dec.Decode(payload, width, height, isIFrame)
	if err == nil || c.sticky {
		return frame, err
	}
	if !errors.Is(err, ErrDecoderUnavailable) {
		return frame, err
	}

	log.Warn("hardware decoder unavailable, falling back to software", "backend", dec.Name(), "error", err)
	c.mu.Lock()
	dec.Close()
	c.current = newSoftwareVideoDecoder()
	c.sticky = true
	fallback := c.current
	c.mu.Unlock()
	return fallback.Decode(payload, width, height, isIFrame)
}

// BackendName reports the active backend, for telemetry.
func (c *DecoderChain) BackendName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Name()
}

func (c *DecoderChain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Close()
}

// AudioDecoder turns an encoded audio payload into PCM samples.
type AudioDecoder interface {
	Decode(payload []byte) ([]byte, error)
}

// passthroughAudioDecoder returns the payload unchanged; the server's
// placeholder audio capturer sends empty AAC-shaped frames.
type passthroughAudioDecoder struct{}

func NewAudioDecoder() AudioDecoder { return &passthroughAudioDecoder{} }

func (d *passthroughAudioDecoder) Decode(payload []byte) ([]byte, error) {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}
