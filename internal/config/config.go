package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "gostt-assistant"

// Config holds all application configuration.
type Config struct {
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Capture    CaptureConfig    `yaml:"capture"`
	VAD        VADConfig        `yaml:"vad"`
	Audio      AudioConfig      `yaml:"audio"`
	Completion CompletionConfig `yaml:"completion"`
	Inject     InjectConfig     `yaml:"inject"`
	Notify     NotifyConfig     `yaml:"notify"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Mode       ModeConfig       `yaml:"mode"`
	LogLevel   string           `yaml:"log_level"`
}

// TranscribeConfig holds the model path and decode parameters.
type TranscribeConfig struct {
	ModelPath       string        `yaml:"model_path"`
	Language        string        `yaml:"language"`
	Threads         uint          `yaml:"threads"`
	TokenTimestamps bool          `yaml:"token_timestamps"`
	PrintProgress   bool          `yaml:"print_progress"`
	Duration        time.Duration `yaml:"duration"`
	Translate       bool          `yaml:"translate"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "hold" or "toggle"
}

// CaptureConfig selects how a listening episode is cut into recordings.
type CaptureConfig struct {
	Strategy     string        `yaml:"strategy"` // "fixed" or "vad"
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	// MinDuration drops recordings too short to hold speech.
	MinDuration time.Duration `yaml:"min_duration"`
}

// VADConfig tunes the sliding end-of-speech detector.
type VADConfig struct {
	Threshold float64       `yaml:"threshold"`
	CutoffHz  float64       `yaml:"cutoff_hz"`
	Window    time.Duration `yaml:"window"`
	Trailing  time.Duration `yaml:"trailing"`
	MinSpeech time.Duration `yaml:"min_speech"`
}

// AudioConfig holds audio conversion settings.
type AudioConfig struct {
	TargetSampleRate int `yaml:"target_sample_rate"`
	// DebugDir, when set, receives a WAV of every captured segment.
	DebugDir string `yaml:"debug_dir"`
}

// CompletionConfig holds the remote chat completion settings.
type CompletionConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key"`
	SystemPrompt string        `yaml:"system_prompt"`
	UserPrompt   string        `yaml:"user_prompt"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	// Field is the dotted path of the text delta in each streamed chunk.
	Field string `yaml:"field"`
}

// InjectConfig holds text injection settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "type" or "paste"
}

// NotifyConfig controls desktop notifications for fatal errors.
type NotifyConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Burst    int           `yaml:"burst"`
}

// MetricsConfig controls the Prometheus listener. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ModeConfig controls the mode cycle.
type ModeConfig struct {
	Cycle string `yaml:"cycle"` // "inactive" or "listening"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Transcribe: TranscribeConfig{
			ModelPath:       expandTilde(defaultModelPath),
			Language:        "en",
			Threads:         8,
			TokenTimestamps: true,
			Duration:        30 * time.Second,
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "r"},
			Mode: "toggle",
		},
		Capture: CaptureConfig{
			Strategy:     "fixed",
			PollInterval: 200 * time.Millisecond,
			MaxDuration:  30 * time.Second,
			MinDuration:  300 * time.Millisecond,
		},
		VAD: VADConfig{
			Threshold: 0.6,
			CutoffHz:  100,
			Window:    3 * time.Second,
			Trailing:  700 * time.Millisecond,
			MinSpeech: time.Second,
		},
		Audio: AudioConfig{
			TargetSampleRate: 16000,
		},
		Completion: CompletionConfig{
			Endpoint:    "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			Timeout:     30 * time.Second,
			Field:       "choices.0.delta.content",
		},
		Inject: InjectConfig{
			Method: "type",
		},
		Notify: NotifyConfig{
			Enabled:  true,
			Interval: 10 * time.Second,
			Burst:    1,
		},
		Mode: ModeConfig{
			Cycle: "inactive",
		},
		LogLevel: "info",
	}
}

const defaultModelPath = "~/.local/share/" + appName + "/models/ggml-base.en.bin"

// defaultYAML is written by WriteDefault. It must stay in sync with Default.
const defaultYAML = `# ` + appName + ` configuration
# Durations use Go syntax: 200ms, 1.5s, 2m.

transcribe:
  model_path: ` + defaultModelPath + `
  language: en
  threads: 8
  token_timestamps: true
  print_progress: false
  duration: 30s
  translate: false

hotkey:
  keys: ["ctrl", "shift", "r"]
  mode: toggle          # toggle or hold

capture:
  strategy: fixed       # fixed or vad
  poll_interval: 200ms
  max_duration: 30s
  min_duration: 300ms

vad:
  threshold: 0.6
  cutoff_hz: 100
  window: 3s
  trailing: 700ms
  min_speech: 1s

audio:
  target_sample_rate: 16000
  debug_dir: ""         # write every captured segment as WAV here

completion:
  enabled: false
  endpoint: https://api.openai.com/v1
  model: gpt-4o-mini
  api_key: ""           # falls back to OPENAI_API_KEY
  system_prompt: ""
  user_prompt: ""
  temperature: 0.7
  timeout: 30s
  field: choices.0.delta.content

inject:
  method: type          # type or paste

notify:
  enabled: true
  interval: 10s
  burst: 1

metrics:
  listen: ""            # e.g. 127.0.0.1:9464

mode:
  cycle: inactive       # inactive or listening

log_level: info
`

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.ModelPath = expandTilde(cfg.Transcribe.ModelPath)
	cfg.Audio.DebugDir = expandTilde(cfg.Audio.DebugDir)

	return cfg, nil
}

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultYAML), 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Transcribe.ModelPath == "" {
		return fmt.Errorf("transcribe.model_path must not be empty")
	}
	if c.Transcribe.Language == "" {
		return fmt.Errorf("transcribe.language must not be empty")
	}
	if c.Transcribe.Threads == 0 {
		return fmt.Errorf("transcribe.threads must be > 0")
	}
	if c.Transcribe.Duration < 0 {
		return fmt.Errorf("transcribe.duration must not be negative")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}
	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Capture.Strategy {
	case "fixed", "vad":
	default:
		return fmt.Errorf("capture.strategy must be \"fixed\" or \"vad\", got %q", c.Capture.Strategy)
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("capture.poll_interval must be > 0")
	}
	if c.Capture.MaxDuration <= 0 {
		return fmt.Errorf("capture.max_duration must be > 0")
	}

	if c.VAD.Threshold <= 0 || c.VAD.Threshold > 1 {
		return fmt.Errorf("vad.threshold must be in (0, 1], got %g", c.VAD.Threshold)
	}
	if c.VAD.CutoffHz < 0 {
		return fmt.Errorf("vad.cutoff_hz must not be negative")
	}
	if c.VAD.Trailing <= 0 || c.VAD.Window <= c.VAD.Trailing {
		return fmt.Errorf("vad.window (%s) must be longer than vad.trailing (%s) and both > 0", c.VAD.Window, c.VAD.Trailing)
	}

	if c.Audio.TargetSampleRate <= 0 {
		return fmt.Errorf("audio.target_sample_rate must be > 0")
	}

	if c.Completion.Enabled {
		if c.Completion.Endpoint == "" {
			return fmt.Errorf("completion.endpoint must not be empty when completion is enabled")
		}
		if c.Completion.Model == "" {
			return fmt.Errorf("completion.model must not be empty when completion is enabled")
		}
	}

	switch c.Inject.Method {
	case "type", "paste":
	default:
		return fmt.Errorf("inject.method must be \"type\" or \"paste\", got %q", c.Inject.Method)
	}

	if c.Notify.Enabled && c.Notify.Interval <= 0 {
		return fmt.Errorf("notify.interval must be > 0")
	}

	switch c.Mode.Cycle {
	case "inactive", "listening":
	default:
		return fmt.Errorf("mode.cycle must be \"inactive\" or \"listening\", got %q", c.Mode.Cycle)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
