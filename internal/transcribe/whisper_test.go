package transcribe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/gostt-assistant/internal/audio"
)

// whisperModelPath resolves the path to the whisper model relative to the project root.
func whisperModelPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.en.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s: %v", path, err)
	}
	return path
}

// jfkSamples loads the JFK sample WAV as mono float32 samples.
func jfkSamples(t *testing.T) []float32 {
	t.Helper()
	wavPath := filepath.Join("..", "..", "testdata", "jfk.wav")
	if _, err := os.Stat(wavPath); err != nil {
		t.Skipf("JFK sample not found at %s: %v", wavPath, err)
	}
	rec, err := audio.ReadWAV(wavPath)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	rec.DownmixToMono()
	return rec.Samples
}

func whisperEngine(t *testing.T) *Engine {
	t.Helper()
	model, err := LoadModel(whisperModelPath(t))
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	e := NewEngine(&WhisperBackend{Model: model}, DefaultParameters(), nil)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestWhisperProcessJFK(t *testing.T) {
	e := whisperEngine(t)
	samples := jfkSamples(t)

	text, err := e.Process(samples)
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", text)
	}
}

func TestWhisperProcessSilence(t *testing.T) {
	e := whisperEngine(t)

	// Silence should not error, just return empty-ish text.
	if _, err := e.Process(make([]float32, SampleRate)); err != nil {
		t.Fatalf("Process on silence returned error: %v", err)
	}
}
