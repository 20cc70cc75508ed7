package mediaserver

import (
	"hash/crc32"
	"sync"
)

// frameDiffer detects unchanged frames, by CRC32 hash of raw pixel data when
// the capturer gives no cheaper signal, or directly from the capturer's
// FrameChangeHint when it does.
type frameDiffer struct {
	mu          sync.Mutex
	lastHash    uint32
	hasLastHash bool
}

func newFrameDiffer() *frameDiffer {
	return &frameDiffer{}
}

// HasChanged computes CRC32 of the Pix slice and returns true if it
// differs from the last sent frame. Returns true on the first frame.
func (d *frameDiffer) HasChanged(pix []byte) bool {
	h := crc32.ChecksumIEEE(pix)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLastHash && h == d.lastHash {
		return false
	}
	d.lastHash = h
	d.hasLastHash = true
	return true
}

// HasChangedHint reports whether the desktop was redrawn using a
// capturer-provided accumulated-frame count instead of a pixel hash. A
// count of 0 means nothing changed since the last capture.
func (d *frameDiffer) HasChangedHint(accumulatedFrames uint32) bool {
	return accumulatedFrames != 0
}

// Reset clears the stored hash (e.g. on config change).
func (d *frameDiffer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasLastHash = false
}
