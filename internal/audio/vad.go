package audio

import (
	"encoding/binary"
	"math"
)

// Detector classifies short PCM16 audio frames as speech or non-speech
// using RMS energy. Decisions are additionally smoothed over a sliding
// window: a window is kept only when enough of its frames carry speech,
// so isolated noise spikes do not wake the recognizer.
type Detector struct {
	energyFloor float64
	window      []bool
	next        int
	filled      int
}

// NewDetector creates a detector. energyFloor is the RMS amplitude above
// which a frame counts as speech; windowFrames is the smoothing span.
func NewDetector(energyFloor float64, windowFrames int) *Detector {
	if windowFrames <= 0 {
		windowFrames = 10
	}
	return &Detector{
		energyFloor: energyFloor,
		window:      make([]bool, windowFrames),
	}
}

// Classify records one frame into the window and reports whether the
// frame itself carries speech.
func (d *Detector) Classify(frame []byte) bool {
	speech := RMSEnergy(frame) >= d.energyFloor
	d.window[d.next] = speech
	d.next = (d.next + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}
	return speech
}

// WindowFull reports whether the smoothing window has seen a full span
// of frames since the last Reset.
func (d *Detector) WindowFull() bool {
	return d.filled == len(d.window)
}

// SpeechRatio returns the fraction of frames in the current window that
// carried speech. Returns 0 before any frame has been observed.
func (d *Detector) SpeechRatio() float64 {
	if d.filled == 0 {
		return 0
	}
	speech := 0
	for i := 0; i < d.filled; i++ {
		if d.window[i] {
			speech++
		}
	}
	return float64(speech) / float64(d.filled)
}

// Reset clears the smoothing window.
func (d *Detector) Reset() {
	d.next = 0
	d.filled = 0
}

// RMSEnergy computes root-mean-square amplitude over little-endian
// int16 samples. A trailing odd byte is ignored.
func RMSEnergy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
