package mediaserver

import (
	"image"
	"sync"
)

// placeholderCapturer is a capture backend that produces a solid-color
// frame at the configured resolution. Real per-OS capture (DXGI, X11,
// CoreGraphics) is out of scope: the pipeline around it — gating, diffing,
// fragmenting, throttling — is what this module implements and tests.
type placeholderCapturer struct {
	mu     sync.Mutex
	width  int
	height int
	closed bool
}

func newPlatformCapturer(cfg CaptureConfig) (ScreenCapturer, error) {
	width, height := 1920, 1080
	if cfg.ScaleFactor > 0 && cfg.ScaleFactor != 1.0 {
		width = int(float64(width) * cfg.ScaleFactor)
		height = int(float64(height) * cfg.ScaleFactor)
	}
	return &placeholderCapturer{width: width, height: height}, nil
}

func (c *placeholderCapturer) Capture() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotSupported
	}
	return image.NewRGBA(image.Rect(0, 0, c.width, c.height)), nil
}

func (c *placeholderCapturer) CaptureRegion(x, y, width, height int) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrNotSupported
	}
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

func (c *placeholderCapturer) GetScreenBounds() (width, height int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height, nil
}

func (c *placeholderCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Resize updates the resolution the next Capture call reports, used when
// the client sends a Dimensions control message.
func (c *placeholderCapturer) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
}

// Monitors reports the single virtual display this placeholder captures.
func (c *placeholderCapturer) Monitors() []MonitorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []MonitorInfo{{Index: 0, Width: c.width, Height: c.height, IsPrimary: true}}
}
