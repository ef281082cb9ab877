// Package metrics exposes Prometheus instrumentation for the capture and
// transcription pipeline. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors and the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	Transitions       *prometheus.CounterVec
	CaptureSessions   prometheus.Counter
	CaptureErrors     prometheus.Counter
	Segments          prometheus.Counter
	SegmentDuration   prometheus.Histogram
	TranscribeLatency prometheus.Histogram
	TranscribeErrors  prometheus.Counter
	Deltas            prometheus.Counter
	CompletionErrors  prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gostt_mode_transitions_total",
			Help: "Mode transitions by target mode and trigger source",
		}, []string{"to", "source"}),
		CaptureSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_capture_sessions_total",
			Help: "Capture sessions started",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_capture_errors_total",
			Help: "Capture sessions that failed to start or stop",
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_segments_total",
			Help: "Audio segments handed to the transcriber",
		}),
		SegmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_segment_duration_seconds",
			Help:    "Duration of captured audio segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
		}),
		TranscribeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gostt_transcribe_duration_seconds",
			Help:    "Wall time spent decoding one segment",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		TranscribeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_transcribe_errors_total",
			Help: "Segments whose decode failed",
		}),
		Deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_completion_deltas_total",
			Help: "Text deltas received from the completion stream",
		}),
		CompletionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostt_completion_errors_total",
			Help: "Completion requests that failed",
		}),
	}
	reg.MustRegister(
		m.Transitions, m.CaptureSessions, m.CaptureErrors, m.Segments, m.SegmentDuration,
		m.TranscribeLatency, m.TranscribeErrors, m.Deltas, m.CompletionErrors,
	)
	return m
}

// Transition counts one mode change.
func (m *Metrics) Transition(to, source string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(to, source).Inc()
}

// CaptureStarted counts a capture session.
func (m *Metrics) CaptureStarted() {
	if m == nil {
		return
	}
	m.CaptureSessions.Inc()
}

// CaptureFailed counts a failed capture session.
func (m *Metrics) CaptureFailed() {
	if m == nil {
		return
	}
	m.CaptureErrors.Inc()
}

// Segment records one captured segment.
func (m *Metrics) Segment(d time.Duration) {
	if m == nil {
		return
	}
	m.Segments.Inc()
	m.SegmentDuration.Observe(d.Seconds())
}

// Transcribed records one decode and whether it failed.
func (m *Metrics) Transcribed(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.TranscribeLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.TranscribeErrors.Inc()
	}
}

// Delta counts one streamed text delta.
func (m *Metrics) Delta() {
	if m == nil {
		return
	}
	m.Deltas.Inc()
}

// CompletionFailed counts a failed completion request.
func (m *Metrics) CompletionFailed() {
	if m == nil {
		return
	}
	m.CompletionErrors.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
