package mediaserver

import (
	"sync"
	"time"
)

// placeholderAudioCapturer emits empty AAC-shaped frames at the cadence one
// real AAC frame (1024 samples at 44.1 kHz stereo) would arrive. Real
// system-audio capture (WASAPI loopback, PulseAudio monitor) and encoding
// are out of scope here, mirroring the Non-goal treatment of video
// encoder/decoder implementation; this exists so the audio fan-out path is
// exercised end to end.
type placeholderAudioCapturer struct {
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newPlaceholderAudioCapturer() *placeholderAudioCapturer {
	return &placeholderAudioCapturer{}
}

func (a *placeholderAudioCapturer) Start(callback func([]byte)) error {
	a.mu.Lock()
	if a.stopChan != nil {
		a.mu.Unlock()
		return nil
	}
	a.stopChan = make(chan struct{})
	stop := a.stopChan
	a.mu.Unlock()

	// Silence: an empty AAC payload rather than a fixed-amplitude byte
	// value, since silence in an encoded stream isn't a repeated byte the
	// way it is in raw PCM or mu-law.
	frame := []byte{}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(audioFrameLength)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				callback(frame)
			}
		}
	}()
	return nil
}

func (a *placeholderAudioCapturer) Stop() {
	a.mu.Lock()
	stop := a.stopChan
	a.stopChan = nil
	a.mu.Unlock()
	if stop != nil {
		close(stop)
		a.wg.Wait()
	}
}
