package dictation

import (
	"context"
	"fmt"
	"strings"

	"go.aimuz.me/hark/stt"
)

// Normalize converts signed 16-bit samples to float32 in [-1, 1].
func Normalize(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Dispatcher hands closed segments to a transcription engine and joins
// the returned fragments into one line of text. It mutates nothing;
// appending the line to a transcript is the caller's job.
type Dispatcher struct {
	engine   stt.Engine
	language string
}

// NewDispatcher creates a dispatcher for the given engine and language hint.
func NewDispatcher(engine stt.Engine, language string) *Dispatcher {
	return &Dispatcher{engine: engine, language: language}
}

// Dispatch transcribes a closed segment. Fragments are joined with single
// spaces and surrounding whitespace is trimmed. An empty result means the
// engine understood nothing; that is a normal outcome, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, seg *ClosedSegment) (string, error) {
	fragments, err := d.engine.Transcribe(ctx, Normalize(seg.Samples), seg.SampleRate, d.language)
	if err != nil {
		return "", fmt.Errorf("transcribe segment: %w", err)
	}
	return strings.TrimSpace(strings.Join(fragments, " ")), nil
}
