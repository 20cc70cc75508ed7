package mediaserver

// MonitorInfo describes one display the host exposes for capture. Real
// multi-display enumeration is per-OS (EnumDisplayMonitors, XRandR,
// CGGetActiveDisplayList); every ScreenCapturer at least reports the single
// virtual display it is currently capturing.
type MonitorInfo struct {
	Index     int
	Width     int
	Height    int
	X         int
	Y         int
	IsPrimary bool
}

// MonitorProvider is implemented by capturers that can enumerate the
// displays available to capture, beyond the single bounds GetScreenBounds
// reports for whichever one is active.
type MonitorProvider interface {
	Monitors() []MonitorInfo
}
