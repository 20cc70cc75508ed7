package mediaserver

import (
	"sync"
	"time"
)

// StreamMetrics tracks rolling counters for one broadcast pipeline: how
// many frames were captured/encoded/sent/skipped, the timing of the most
// recent capture and encode, and the bitrate the adaptive controller has
// settled on.
type StreamMetrics struct {
	mu sync.RWMutex

	FramesCaptured uint64
	FramesEncoded  uint64
	FramesSent     uint64
	FramesSkipped  uint64

	LastCaptureTime time.Duration
	LastEncodeTime  time.Duration
	LastFrameSize   int

	TotalBytesSent uint64
	CurrentBitrate int
	startTime      time.Time
}

func newStreamMetrics() *StreamMetrics {
	return &StreamMetrics{startTime: time.Now()}
}

func (m *StreamMetrics) RecordCapture(d time.Duration) {
	m.mu.Lock()
	m.FramesCaptured++
	m.LastCaptureTime = d
	m.mu.Unlock()
}

func (m *StreamMetrics) RecordSkip() {
	m.mu.Lock()
	m.FramesSkipped++
	m.mu.Unlock()
}

func (m *StreamMetrics) RecordEncode(d time.Duration, size int) {
	m.mu.Lock()
	m.FramesEncoded++
	m.LastEncodeTime = d
	m.LastFrameSize = size
	m.mu.Unlock()
}

func (m *StreamMetrics) RecordSend(size int) {
	m.mu.Lock()
	m.FramesSent++
	m.TotalBytesSent += uint64(size)
	m.mu.Unlock()
}

// RecordBitrate records the adaptive controller's current target, surfaced
// in the next Snapshot.
func (m *StreamMetrics) RecordBitrate(bitrate int) {
	m.mu.Lock()
	m.CurrentBitrate = bitrate
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time copy of metrics for logging.
type MetricsSnapshot struct {
	FramesCaptured uint64
	FramesEncoded  uint64
	FramesSent     uint64
	FramesSkipped  uint64
	CaptureMs      float64
	EncodeMs       float64
	LastFrameSize  int
	BandwidthKBps  float64
	CurrentBitrate int
	Uptime         time.Duration
}

func (m *StreamMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uptime := time.Since(m.startTime)
	bw := float64(0)
	if uptime.Seconds() > 0 {
		bw = float64(m.TotalBytesSent) / uptime.Seconds() / 1024.0
	}

	return MetricsSnapshot{
		FramesCaptured: m.FramesCaptured,
		FramesEncoded:  m.FramesEncoded,
		FramesSent:     m.FramesSent,
		FramesSkipped:  m.FramesSkipped,
		CaptureMs:      float64(m.LastCaptureTime.Microseconds()) / 1000.0,
		EncodeMs:       float64(m.LastEncodeTime.Microseconds()) / 1000.0,
		LastFrameSize:  m.LastFrameSize,
		BandwidthKBps:  bw,
		CurrentBitrate: m.CurrentBitrate,
		Uptime:         uptime,
	}
}
