package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// SampleFormat is the raw sample encoding delivered by the input device.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatU8
	FormatS16
	FormatS24
	FormatS32
	FormatF32
)

func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatS16:
		return "s16"
	case FormatS24:
		return "s24"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// bytesPerSample returns the width of one sample, or 0 for unknown formats.
func (f SampleFormat) bytesPerSample() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16:
		return 2
	case FormatS24:
		return 3
	case FormatS32, FormatF32:
		return 4
	default:
		return 0
	}
}

// Format is the stream configuration negotiated with the device at capture time.
type Format struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.SampleFormat)
}

// fromMalgo maps a miniaudio format to our SampleFormat.
func fromMalgo(f malgo.FormatType) SampleFormat {
	switch f {
	case malgo.FormatU8:
		return FormatU8
	case malgo.FormatS16:
		return FormatS16
	case malgo.FormatS24:
		return FormatS24
	case malgo.FormatS32:
		return FormatS32
	case malgo.FormatF32:
		return FormatF32
	default:
		return FormatUnknown
	}
}

// decodeSamples converts raw little-endian device bytes to float32 samples in
// [-1.0, 1.0]. Trailing bytes that do not form a whole sample are ignored.
func decodeSamples(data []byte, format SampleFormat, sampleCount int) []float32 {
	width := format.bytesPerSample()
	if width == 0 {
		return nil
	}
	if limit := len(data) / width; sampleCount > limit {
		sampleCount = limit
	}

	samples := make([]float32, sampleCount)
	for i := 0; i < sampleCount; i++ {
		b := data[i*width : i*width+width]
		switch format {
		case FormatU8:
			samples[i] = (float32(b[0]) - 128) / 128
		case FormatS16:
			samples[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case FormatS24:
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			samples[i] = float32(v) / 8388608
		case FormatS32:
			samples[i] = float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		case FormatF32:
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		}
	}
	return samples
}
