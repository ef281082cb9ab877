package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/gostt-assistant/internal/audio"
	"github.com/chaz8081/gostt-assistant/internal/capture"
	"github.com/chaz8081/gostt-assistant/internal/completion"
	"github.com/chaz8081/gostt-assistant/internal/config"
	"github.com/chaz8081/gostt-assistant/internal/hotkey"
	"github.com/chaz8081/gostt-assistant/internal/inject"
	"github.com/chaz8081/gostt-assistant/internal/metrics"
	"github.com/chaz8081/gostt-assistant/internal/mode"
	"github.com/chaz8081/gostt-assistant/internal/notify"
	"github.com/chaz8081/gostt-assistant/internal/pipeline"
	"github.com/chaz8081/gostt-assistant/internal/transcribe"
	"github.com/chaz8081/gostt-assistant/internal/vad"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-assistant/config.yaml)")
	initConfig := flag.Bool("init", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	printBanner(cfg)

	var notifier notify.Notifier = notify.Log{Logger: logger}
	if cfg.Notify.Enabled {
		notifier = notify.NewDesktop("gostt-assistant", cfg.Notify.Interval, cfg.Notify.Burst, logger)
	}

	// The recognizer is a hard requirement; there is nothing to fall back to.
	log.Println("Loading whisper model...")
	modelStart := time.Now()
	model, err := transcribe.LoadModel(cfg.Transcribe.ModelPath)
	if err != nil {
		notifier.Notify("Speech model missing", err.Error())
		log.Fatalf("Failed to load whisper model: %v\n\nCheck that the model file exists at: %s", err, cfg.Transcribe.ModelPath)
	}
	log.Printf("Model loaded in %s", time.Since(modelStart).Round(time.Millisecond))
	engine := transcribe.NewEngine(&transcribe.WhisperBackend{Model: model, Log: logger}, decodeParams(cfg.Transcribe), logger)

	// Initialize audio capture
	audioEngine, err := audio.NewEngine(logger)
	if err != nil {
		engine.Close()
		notifier.Notify("Microphone unavailable", err.Error())
		log.Fatalf("Failed to initialize audio capture: %v\n\nEnsure microphone access is granted to this application.", err)
	}
	if ok, err := audioEngine.MicrophoneAllowed(); err != nil || !ok {
		logger.Warn("microphone may be unavailable", "allowed", ok, "error", err)
	}

	strategy, err := capture.New(cfg.Capture.Strategy,
		capture.FixedDuration{
			PollInterval: cfg.Capture.PollInterval,
			MaxDuration:  cfg.Capture.MaxDuration,
			Logger:       logger,
		},
		capture.SlidingVAD{
			PollInterval: cfg.Capture.PollInterval,
			Window:       cfg.VAD.Window,
			Trailing:     cfg.VAD.Trailing,
			MinSpeech:    cfg.VAD.MinSpeech,
			MaxSegment:   cfg.Capture.MaxDuration,
			Detector:     vad.Detector{Threshold: cfg.VAD.Threshold, CutoffHz: cfg.VAD.CutoffHz},
			Logger:       logger,
		})
	if err != nil {
		log.Fatalf("capture: %v", err)
	}

	injector := inject.NewInjector(cfg.Inject.Method, logger)
	log.Printf("Text injector ready (method: %s)", cfg.Inject.Method)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics listener", "error", err)
			}
		}()
	}

	pcfg := pipeline.Config{
		Strategy:    strategy,
		Source:      capture.EngineSource{Engine: audioEngine},
		Engine:      engine,
		Presenter:   injector,
		TargetRate:  cfg.Audio.TargetSampleRate,
		MinDuration: cfg.Capture.MinDuration,
		DebugDir:    cfg.Audio.DebugDir,
		Field:       cfg.Completion.Field,
		Notifier:    notifier,
		Metrics:     m,
		Logger:      logger,
	}
	if cfg.Completion.Enabled {
		client, err := completion.NewClient(completion.Config{
			Endpoint:    cfg.Completion.Endpoint,
			Model:       cfg.Completion.Model,
			APIKey:      cfg.Completion.APIKey,
			Temperature: cfg.Completion.Temperature,
			Timeout:     cfg.Completion.Timeout,
		})
		if err != nil {
			log.Fatalf("completion: %v", err)
		}
		pcfg.Streamer = client
		pcfg.Prompt = &completion.Prompt{
			System:     cfg.Completion.SystemPrompt,
			UserPrompt: cfg.Completion.UserPrompt,
			Log:        logger,
		}
		log.Printf("Completion enabled (%s, model %s)", cfg.Completion.Endpoint, cfg.Completion.Model)
	}

	cycle, err := mode.ParseCycle(cfg.Mode.Cycle)
	if err != nil {
		log.Fatalf("mode: %v", err)
	}
	ctl := pipeline.NewController(ctx, pcfg)
	machine := mode.New(ctl, cycle, logger)
	ctl.Attach(machine)

	// Initialize hotkey listener
	listener := hotkey.NewListener(cfg.Hotkey.Keys)
	dispatcher, err := hotkey.NewDispatcher(machine, cfg.Hotkey.Mode, logger)
	if err != nil {
		log.Fatalf("hotkey: %v", err)
	}
	log.Printf("Hotkey listener ready (%s, mode: %s)", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go listener.Start()
	stopped := make(chan struct{})
	go func() {
		dispatcher.Run(listener.Events())
		close(stopped)
	}()

	log.Println("Ready! Press", strings.Join(cfg.Hotkey.Keys, "+"), "to talk. Ctrl+C to quit.")

	select {
	case <-stopped:
		log.Println("Hotkey listener stopped")
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	}

	cancel()
	if waitWorkers(ctl, 5*time.Second) {
		_ = audioEngine.Close()
		_ = engine.Close()
	}
	log.Println("Goodbye!")
	// Exit directly to avoid gohook's C cleanup crash.
	// The OS reclaims the event hook on process exit.
	os.Exit(0)
}

// waitWorkers gives in-flight workers a bounded time to return. It reports
// false on timeout, when a decode may still be using the model.
func waitWorkers(ctl *pipeline.Controller, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		ctl.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		log.Println("Workers still running, exiting anyway")
		return false
	}
}

func decodeParams(c config.TranscribeConfig) transcribe.DecodeParameters {
	return transcribe.DecodeParameters{
		Language:        c.Language,
		Threads:         c.Threads,
		TokenTimestamps: c.TokenTimestamps,
		PrintProgress:   c.PrintProgress,
		Duration:        c.Duration,
		Translate:       c.Translate,
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults (run with -init to write one)")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== gostt-assistant ===")
	fmt.Printf("  Model:      %s\n", cfg.Transcribe.ModelPath)
	fmt.Printf("  Hotkey:     %s (%s mode)\n", strings.Join(cfg.Hotkey.Keys, "+"), cfg.Hotkey.Mode)
	fmt.Printf("  Capture:    %s (poll %s, max %s)\n", cfg.Capture.Strategy, cfg.Capture.PollInterval, cfg.Capture.MaxDuration)
	fmt.Printf("  Cycle:      %s\n", cfg.Mode.Cycle)
	fmt.Printf("  Inject:     %s\n", cfg.Inject.Method)
	if cfg.Completion.Enabled {
		fmt.Printf("  Completion: %s\n", cfg.Completion.Model)
	} else {
		fmt.Println("  Completion: off")
	}
	fmt.Printf("  Log:        %s\n", cfg.LogLevel)
	fmt.Println("=======================")
}
