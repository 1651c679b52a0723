// Package metrics exposes Prometheus instrumentation for the dictation
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go.aimuz.me/hark/dictation"
)

// Metrics contains all Prometheus metrics for the dictation service.
type Metrics struct {
	// Capture metrics
	FramesCaptured prometheus.Counter
	FramePeak      prometheus.Histogram
	InputOverflows prometheus.Counter

	// Segmentation metrics
	SegmentsClosed  *prometheus.CounterVec
	SegmentDuration prometheus.Histogram

	// Transcription metrics
	Transcriptions        prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Transcript metrics
	TranscriptLines prometheus.Counter
}

var _ dictation.Metrics = (*Metrics)(nil)

// New creates and registers all metrics with reg. A nil reg registers
// with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	auto := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		FramesCaptured: auto.NewCounter(prometheus.CounterOpts{
			Name: "hark_frames_captured_total",
			Help: "Total number of audio frames read from the source",
		}),
		FramePeak: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_frame_peak_amplitude",
			Help:    "Peak absolute amplitude per captured frame",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10), // 64 to 32768
		}),
		InputOverflows: auto.NewCounter(prometheus.CounterOpts{
			Name: "hark_input_overflows_total",
			Help: "Total number of frames dropped after input overflow",
		}),

		// Segmentation metrics
		SegmentsClosed: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "hark_segments_closed_total",
			Help: "Total number of closed speech segments",
		}, []string{"cause"}),
		SegmentDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_segment_duration_seconds",
			Help:    "Duration of closed speech segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to ~1 minute
		}),

		// Transcription metrics
		Transcriptions: auto.NewCounter(prometheus.CounterOpts{
			Name: "hark_transcriptions_total",
			Help: "Total number of segment transcription calls",
		}),
		TranscriptionFailures: auto.NewCounter(prometheus.CounterOpts{
			Name: "hark_transcription_failures_total",
			Help: "Total number of failed transcription calls",
		}),
		TranscriptionDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hark_transcription_duration_seconds",
			Help:    "Duration of segment transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// Transcript metrics
		TranscriptLines: auto.NewCounter(prometheus.CounterOpts{
			Name: "hark_transcript_lines_total",
			Help: "Total number of finalized transcript lines",
		}),
	}
}

// RecordFrame observes one captured frame's peak amplitude.
func (m *Metrics) RecordFrame(peak int32) {
	m.FramesCaptured.Inc()
	m.FramePeak.Observe(float64(peak))
}

// RecordOverflow counts a frame dropped after an input overflow.
func (m *Metrics) RecordOverflow() {
	m.InputOverflows.Inc()
}

// RecordSegment observes a closed segment and its closure cause.
func (m *Metrics) RecordSegment(cause string, duration time.Duration) {
	m.SegmentsClosed.WithLabelValues(cause).Inc()
	m.SegmentDuration.Observe(duration.Seconds())
}

// RecordTranscription observes one engine call.
func (m *Metrics) RecordTranscription(duration time.Duration, failed bool) {
	m.Transcriptions.Inc()
	if failed {
		m.TranscriptionFailures.Inc()
	}
	m.TranscriptionDuration.Observe(duration.Seconds())
}

// RecordLine counts a finalized transcript line.
func (m *Metrics) RecordLine() {
	m.TranscriptLines.Inc()
}
