package dictation

import "time"

// Metrics receives pipeline measurements. Implementations must be safe
// for concurrent use. A nil Metrics in Config is replaced by a no-op.
type Metrics interface {
	// RecordFrame observes one captured frame's peak amplitude.
	RecordFrame(peak int32)

	// RecordOverflow counts a frame dropped after an input overflow.
	RecordOverflow()

	// RecordSegment observes a closed segment.
	RecordSegment(cause string, duration time.Duration)

	// RecordTranscription observes one engine call.
	RecordTranscription(duration time.Duration, failed bool)

	// RecordLine counts a finalized transcript line.
	RecordLine()
}

// nopMetrics discards all measurements.
type nopMetrics struct{}

func (nopMetrics) RecordFrame(int32)                       {}
func (nopMetrics) RecordOverflow()                         {}
func (nopMetrics) RecordSegment(string, time.Duration)     {}
func (nopMetrics) RecordTranscription(time.Duration, bool) {}
func (nopMetrics) RecordLine()                             {}
