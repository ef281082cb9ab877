// Package transcribe turns mono 16 kHz audio into text with whisper.cpp.
//
// A Model is loaded once per process. Each transcription session gets its
// own decode state; decodes against the shared model are serialized.
package transcribe

import "errors"

// Errors returned by this package.
var (
	ErrModelLoad = errors.New("transcribe: model load failed")
	ErrDecode    = errors.New("transcribe: decode failed")
)

// Transcriber converts audio samples to text.
type Transcriber interface {
	// Process transcribes mono 16kHz float32 audio samples to text.
	Process(samples []float32) (string, error)
	// Close releases backend resources.
	Close() error
}
