package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// WriteWAV writes the recording as 16-bit PCM. Samples outside [-1, 1] are
// clamped for the integer encoding only; the recording is not modified.
func (r *Recording) WriteWAV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav: %w", err)
	}

	enc := wav.NewEncoder(f, r.Format.SampleRate, wavBitDepth, r.Format.Channels, 1)

	data := make([]int, len(r.Samples))
	for i, s := range r.Samples {
		s = max(-1, min(1, s))
		data[i] = int(s * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: r.Format.Channels,
			SampleRate:  r.Format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return f.Close()
}

// ReadWAV loads a PCM WAV file into a recording with samples normalized to
// [-1.0, 1.0].
func ReadWAV(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("audio: %s is not a valid wav file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}

	scale := float32(int64(1) << (dec.BitDepth - 1))
	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		if dec.BitDepth == 8 {
			s -= 128 // 8-bit PCM is unsigned
		}
		samples[i] = float32(s) / scale
	}

	sf := FormatS16
	switch dec.BitDepth {
	case 8:
		sf = FormatU8
	case 24:
		sf = FormatS24
	case 32:
		sf = FormatS32
	}

	return &Recording{
		Samples: samples,
		Format: Format{
			SampleRate:   int(dec.SampleRate),
			Channels:     int(dec.NumChans),
			SampleFormat: sf,
		},
	}, nil
}
