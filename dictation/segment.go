package dictation

import (
	"time"

	"go.aimuz.me/hark/audiocapture"
)

// CloseCause identifies why a segment was closed.
type CloseCause int

const (
	// CloseSilence is a natural closure after a run of silent frames.
	CloseSilence CloseCause = iota
	// CloseMaxDuration is a forced closure at the duration cap.
	CloseMaxDuration
)

// String returns a human-readable cause name.
func (c CloseCause) String() string {
	switch c {
	case CloseSilence:
		return "silence"
	case CloseMaxDuration:
		return "max_duration"
	default:
		return "unknown"
	}
}

// ClosedSegment is a finished utterance ready for transcription.
// Ownership of Samples transfers from the accumulator on closure;
// the accumulator starts a fresh buffer and never touches them again.
type ClosedSegment struct {
	Samples    []int16
	SampleRate int
	Duration   time.Duration
	Cause      CloseCause
}

// Accumulator buffers frames until a segment closes. A segment closes
// naturally when a run of silent frames follows enough accumulated audio,
// or is forced closed when the buffer reaches the duration cap.
// Not safe for concurrent use; the capture loop owns it.
type Accumulator struct {
	threshold     int32
	framesToClose int
	minDur        time.Duration
	maxDur        time.Duration

	samples   []int16
	rate      int
	silentRun int
}

// NewAccumulator creates a segment accumulator.
// threshold is the peak amplitude below which a frame counts as silence,
// framesToClose the silent-run length that allows a natural closure,
// minDur the accumulated duration a natural closure must exceed, and
// maxDur the cap past which closure is forced regardless of silence.
func NewAccumulator(threshold int32, framesToClose int, minDur, maxDur time.Duration) *Accumulator {
	return &Accumulator{
		threshold:     threshold,
		framesToClose: framesToClose,
		minDur:        minDur,
		maxDur:        maxDur,
	}
}

// Append adds one frame and evaluates the closure rules.
// It returns the closed segment, or nil while the buffer keeps filling.
func (a *Accumulator) Append(f audiocapture.Frame) *ClosedSegment {
	a.samples = append(a.samples, f.Samples...)
	a.rate = f.SampleRate

	if IsSilent(f.Samples, a.threshold) {
		a.silentRun++
	} else {
		a.silentRun = 0
	}

	switch {
	case a.silentRun >= a.framesToClose && a.Duration() > a.minDur:
		return a.close(CloseSilence)
	case a.Duration() > a.maxDur:
		return a.close(CloseMaxDuration)
	}
	return nil
}

// close hands the buffered samples over and resets the buffer and both
// counters. Closing an empty buffer is a no-op.
func (a *Accumulator) close(cause CloseCause) *ClosedSegment {
	if len(a.samples) == 0 {
		return nil
	}

	seg := &ClosedSegment{
		Samples:    a.samples,
		SampleRate: a.rate,
		Duration:   a.Duration(),
		Cause:      cause,
	}

	a.samples = nil
	a.silentRun = 0

	return seg
}

// Len returns the number of samples currently buffered.
func (a *Accumulator) Len() int {
	return len(a.samples)
}

// Duration returns the duration of buffered audio.
func (a *Accumulator) Duration() time.Duration {
	if a.rate == 0 {
		return 0
	}
	return time.Duration(len(a.samples)) * time.Second / time.Duration(a.rate)
}
