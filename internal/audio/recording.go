package audio

import (
	"time"

	"github.com/google/uuid"
)

// Recording is a finished capture. Samples are float32 in [-1.0, 1.0],
// interleaved when Format.Channels > 1. Format.SampleFormat records what the
// device delivered before conversion.
type Recording struct {
	SessionID uuid.UUID
	Samples   []float32
	Format    Format
}

// Frames returns the number of sample frames (samples per channel).
func (r *Recording) Frames() int {
	if r.Format.Channels <= 0 {
		return 0
	}
	return len(r.Samples) / r.Format.Channels
}

// Duration returns the playback length of the recording.
func (r *Recording) Duration() time.Duration {
	if r.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.Format.SampleRate)
}

// Replace swaps in converted samples at a new sample rate. Used by
// in-place conversions; the channel count is unchanged.
func (r *Recording) Replace(samples []float32, sampleRate int) {
	r.Samples = samples
	r.Format.SampleRate = sampleRate
}

// DownmixToMono averages interleaved channels into a single channel in
// place. A trailing partial frame is averaged over the samples it has.
func (r *Recording) DownmixToMono() {
	ch := r.Format.Channels
	if ch <= 1 {
		return
	}

	n := len(r.Samples)
	mono := make([]float32, 0, (n+ch-1)/ch)
	for i := 0; i < n; i += ch {
		end := min(i+ch, n)
		var sum float32
		for _, s := range r.Samples[i:end] {
			sum += s
		}
		mono = append(mono, sum/float32(end-i))
	}

	r.Samples = mono
	r.Format.Channels = 1
}
