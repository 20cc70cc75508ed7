package mediaserver

import (
	"fmt"
	"image"
)

// ScreenCapturer captures desktop frames for the broadcast pipeline.
type ScreenCapturer interface {
	// Capture captures the screen and returns an image.
	Capture() (*image.RGBA, error)

	// CaptureRegion captures a specific region of the screen.
	CaptureRegion(x, y, width, height int) (*image.RGBA, error)

	// GetScreenBounds returns the screen dimensions.
	GetScreenBounds() (width, height int, err error)

	// Close releases any resources held by the capturer.
	Close() error
}

// CaptureConfig configures a ScreenCapturer.
type CaptureConfig struct {
	// DisplayIndex specifies which display to capture (0 = primary).
	DisplayIndex int

	// ScaleFactor downscales the capture (1.0 = full resolution).
	ScaleFactor float64
}

// DefaultConfig returns a default capture configuration.
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		DisplayIndex: 0,
		ScaleFactor:  1.0,
	}
}

// NewScreenCapturer creates a new platform-specific screen capturer.
func NewScreenCapturer(config CaptureConfig) (ScreenCapturer, error) {
	return newPlatformCapturer(config)
}

// FrameChangeHint is implemented by capturers that can report whether the
// desktop was redrawn since the last call without a full pixel comparison
// (e.g. DXGI's AccumulatedFrames). The pipeline still captures, then uses
// the hint instead of hashing the pixels; when AccumulatedFrames returns 0
// and no keep-alive is due, it skips encoding that frame.
type FrameChangeHint interface {
	AccumulatedFrames() uint32
}

// ErrNotSupported is returned when screen capture is not supported on the platform.
var ErrNotSupported = fmt.Errorf("screen capture not supported on this platform")

// ErrPermissionDenied is returned when screen capture permissions are not granted.
var ErrPermissionDenied = fmt.Errorf("screen capture permission denied")

// ErrDisplayNotFound is returned when the specified display is not found.
var ErrDisplayNotFound = fmt.Errorf("display not found")
