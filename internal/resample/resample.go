// Package resample converts audio between sample rates with a fixed-ratio
// windowed-sinc interpolator.
package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/chaz8081/gostt-assistant/internal/audio"
)

const (
	sincLen      = 256  // kernel taps
	cutoff       = 0.95 // fraction of the lower Nyquist frequency
	oversampling = 128  // kernel table entries per input sample
	maxRatio     = 256.0
)

// ErrResamplerInit means the rate ratio cannot be handled by the interpolator.
var ErrResamplerInit = errors.New("resample: unsupported rate ratio")

// Resampler converts mono buffers from one fixed rate to another.
type Resampler struct {
	fromRate int
	toRate   int
	ratio    float64
	table    []float64 // half kernel, sampled every 1/oversampling input samples
}

// New builds a resampler for fromRate -> toRate.
func New(fromRate, toRate int) (*Resampler, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d Hz", ErrResamplerInit, fromRate, toRate)
	}
	ratio := float64(toRate) / float64(fromRate)
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio > maxRatio || ratio < 1/maxRatio {
		return nil, fmt.Errorf("%w: %d -> %d Hz", ErrResamplerInit, fromRate, toRate)
	}

	return &Resampler{
		fromRate: fromRate,
		toRate:   toRate,
		ratio:    ratio,
		table:    buildKernel(cutoff * math.Min(1, ratio)),
	}, nil
}

// OutputLen returns the number of samples Process produces for n inputs.
func (r *Resampler) OutputLen(n int) int {
	return int(math.Round(float64(n) * r.ratio))
}

// Process resamples a mono buffer. The input is not modified and the output
// is neither clipped nor renormalized.
func (r *Resampler) Process(in []float32) []float32 {
	out := make([]float32, r.OutputLen(len(in)))
	half := sincLen / 2
	step := 1 / r.ratio

	for j := range out {
		t := float64(j) * step
		center := int(math.Floor(t))

		var acc float64
		for k := center - half + 1; k <= center+half; k++ {
			if k < 0 || k >= len(in) {
				continue
			}
			acc += float64(in[k]) * r.kernelAt(math.Abs(t-float64(k)))
		}
		out[j] = float32(acc)
	}
	return out
}

// kernelAt linearly interpolates the tabulated kernel at distance d (in
// input samples) from the center.
func (r *Resampler) kernelAt(d float64) float64 {
	pos := d * oversampling
	i := int(pos)
	if i+1 >= len(r.table) {
		return 0
	}
	frac := pos - float64(i)
	return r.table[i]*(1-frac) + r.table[i+1]*frac
}

// buildKernel tabulates fc*sinc(fc*d) under a squared Blackman-Harris window
// for d in [0, sincLen/2].
func buildKernel(fc float64) []float64 {
	half := float64(sincLen / 2)
	n := sincLen/2*oversampling + 2
	table := make([]float64, n)
	for i := range table {
		d := float64(i) / oversampling
		if d > half {
			break
		}
		table[i] = fc * sinc(fc*d) * blackmanHarris2(d, half)
	}
	return table
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackmanHarris2 is the squared Blackman-Harris window centered at 0 with
// the given half width.
func blackmanHarris2(d, half float64) float64 {
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	x := 2 * math.Pi * (0.5 + d/(2*half))
	w := a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
	return w * w
}

// Samples resamples a mono buffer. It returns in unchanged when the rates
// match.
func Samples(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate && fromRate > 0 {
		return in, nil
	}
	r, err := New(fromRate, toRate)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// Resample converts rec to targetRate in place and returns it. Recordings
// already at targetRate are returned as-is. Interleaved channels are
// resampled independently; the channel count is unchanged.
func Resample(rec *audio.Recording, targetRate int) (*audio.Recording, error) {
	if rec.Format.SampleRate == targetRate && targetRate > 0 {
		return rec, nil
	}

	r, err := New(rec.Format.SampleRate, targetRate)
	if err != nil {
		return nil, err
	}

	ch := rec.Format.Channels
	if ch <= 1 {
		rec.Replace(r.Process(rec.Samples), targetRate)
		return rec, nil
	}

	frames := len(rec.Samples) / ch
	outFrames := r.OutputLen(frames)
	out := make([]float32, outFrames*ch)
	plane := make([]float32, frames)
	for c := 0; c < ch; c++ {
		for i := 0; i < frames; i++ {
			plane[i] = rec.Samples[i*ch+c]
		}
		converted := r.Process(plane)
		for i, s := range converted {
			out[i*ch+c] = s
		}
	}

	rec.Replace(out, targetRate)
	return rec, nil
}
