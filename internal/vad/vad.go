// Package vad decides whether speech has ended at the tail of a buffer by
// comparing trailing energy against the energy of the whole buffer.
package vad

import "math"

const (
	// DefaultThreshold is the trailing/overall energy ratio below which the
	// trailing window counts as silence.
	DefaultThreshold = 0.6
	// DefaultCutoffHz is the high-pass cutoff applied before measuring energy.
	DefaultCutoffHz = 100.0
)

// Detector holds the tuning for HasSpeechEnded. The zero value is not
// useful; use Default or set both fields.
type Detector struct {
	Threshold float64
	CutoffHz  float64
}

// Default returns a Detector with the stock threshold and cutoff.
func Default() Detector {
	return Detector{Threshold: DefaultThreshold, CutoffHz: DefaultCutoffHz}
}

// HasSpeechEnded reports whether the last trailingWindowMs of samples is
// silence following speech, using the default detector.
func HasSpeechEnded(samples []float32, sampleRate, trailingWindowMs int) bool {
	return Default().HasSpeechEnded(samples, sampleRate, trailingWindowMs)
}

// HasSpeechEnded reports whether the mean absolute amplitude of the trailing
// window is at most Threshold times that of the whole buffer, so an all-zero
// buffer counts as ended. It returns false (no decision) when the window is
// empty or not shorter than the buffer. The caller's buffer is not modified.
func (d Detector) HasSpeechEnded(samples []float32, sampleRate, trailingWindowMs int) bool {
	n := len(samples)
	nLast := sampleRate * trailingWindowMs / 1000
	if nLast <= 0 || nLast >= n {
		return false
	}

	data := make([]float32, n)
	copy(data, samples)
	if d.CutoffHz > 0 {
		HighPass(data, d.CutoffHz, sampleRate)
	}

	var energyAll, energyLast float64
	for i, s := range data {
		a := math.Abs(float64(s))
		energyAll += a
		if i >= n-nLast {
			energyLast += a
		}
	}
	energyAll /= float64(n)
	energyLast /= float64(nLast)

	return energyLast <= d.Threshold*energyAll
}

// HighPass applies a single-pole high-pass filter in place.
func HighPass(data []float32, cutoffHz float64, sampleRate int) {
	if len(data) == 0 || sampleRate <= 0 {
		return
	}

	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	alpha := float32(rc / (rc + dt))

	y := data[0]
	prev := data[0]
	for i := 1; i < len(data); i++ {
		x := data[i]
		y = alpha * (y + x - prev)
		prev = x
		data[i] = y
	}
}
