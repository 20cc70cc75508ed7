package mediaserver

import "time"

// audioSampleRate and audioChannels match wire.AudioFrame's AAC-encoded,
// 44.1 kHz stereo data model.
const (
	audioSampleRate  = 44100
	audioChannels    = 2
	aacFrameSamples  = 1024 // samples per channel in one AAC frame
	audioFrameLength = time.Second * aacFrameSamples / audioSampleRate
)

// AudioCapturer captures system audio for streaming to the viewer.
type AudioCapturer interface {
	// Start begins capturing audio. Calls the callback with one AAC-encoded
	// audioFrameLength chunk at a time, at audioSampleRate/audioChannels.
	Start(callback func([]byte)) error
	// Stop stops the audio capture.
	Stop()
}
