package transcribe

import "time"

// SampleRate is the only input rate the decoder accepts.
const SampleRate = 16000

// DecodeParameters is the fixed configuration applied to every decode.
type DecodeParameters struct {
	Language        string
	Threads         uint
	TokenTimestamps bool
	PrintProgress   bool
	// Duration caps how much audio a single decode looks at.
	Duration  time.Duration
	Translate bool
}

// DefaultParameters returns the stock decode configuration.
func DefaultParameters() DecodeParameters {
	return DecodeParameters{
		Language:        "en",
		Threads:         8,
		TokenTimestamps: true,
		Duration:        30 * time.Second,
	}
}
