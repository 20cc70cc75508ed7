package mediaclient

import (
	"sync"
	"time"
)

// ClientMetrics tracks receive-side telemetry: decode throughput and
// network latency, mirroring the server's StreamMetrics pattern.
type ClientMetrics struct {
	mu sync.RWMutex

	FramesDecoded uint64
	FramesDropped uint64
	BytesReceived uint64

	LastRTT     time.Duration
	LastDecodeT time.Duration

	startTime time.Time
}

func newClientMetrics() *ClientMetrics {
	return &ClientMetrics{startTime: time.Now()}
}

func (m *ClientMetrics) RecordDecode(d time.Duration, size int) {
	m.mu.Lock()
	m.FramesDecoded++
	m.LastDecodeT = d
	m.BytesReceived += uint64(size)
	m.mu.Unlock()
}

func (m *ClientMetrics) RecordDrop() {
	m.mu.Lock()
	m.FramesDropped++
	m.mu.Unlock()
}

func (m *ClientMetrics) RecordRTT(d time.Duration) {
	m.mu.Lock()
	m.LastRTT = d
	m.mu.Unlock()
}

// ClientMetricsSnapshot is a point-in-time copy for logging/UI.
type ClientMetricsSnapshot struct {
	FramesDecoded uint64
	FramesDropped uint64
	BytesReceived uint64
	RTTMs         float64
	DecodeMs      float64
	Uptime        time.Duration
}

func (m *ClientMetrics) Snapshot() ClientMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ClientMetricsSnapshot{
		FramesDecoded: m.FramesDecoded,
		FramesDropped: m.FramesDropped,
		BytesReceived: m.BytesReceived,
		RTTMs:         float64(m.LastRTT.Microseconds()) / 1000.0,
		DecodeMs:      float64(m.LastDecodeT.Microseconds()) / 1000.0,
		Uptime:        time.Since(m.startTime),
	}
}
