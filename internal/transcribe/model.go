package transcribe

import (
	"fmt"
	"os"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Model is a loaded whisper model. It is read-only after loading; whisper
// inference on it is not thread safe, so decodes take inferenceMu.
type Model struct {
	path  string
	model whisper.Model

	inferenceMu sync.Mutex
}

// LoadModel checks that path names a non-empty regular file and loads it.
// Every failure wraps ErrModelLoad.
func LoadModel(path string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrModelLoad, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrModelLoad, path)
	}

	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load whisper model %q: %w", ErrModelLoad, path, err)
	}
	return &Model{path: path, model: model}, nil
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string {
	return m.path
}

// Close releases the whisper model resources.
func (m *Model) Close() error {
	if m.model != nil {
		return m.model.Close()
	}
	return nil
}

// ModelHandle loads a model at most once, on first use.
type ModelHandle struct {
	Path string

	once  sync.Once
	model *Model
	err   error
}

// Ensure loads the model on the first call and returns the same result on
// every later call.
func (h *ModelHandle) Ensure() (*Model, error) {
	h.once.Do(func() {
		h.model, h.err = LoadModel(h.Path)
	})
	return h.model, h.err
}
