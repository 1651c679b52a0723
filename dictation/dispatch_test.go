package dictation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeEngine returns scripted results per call, in order. Once the
// script runs out it keeps returning the last entry.
type fakeEngine struct {
	mu     sync.Mutex
	script []fakeResult
	calls  int

	gotSamples []float32
	gotRate    int
	gotLang    string
}

type fakeResult struct {
	fragments []string
	err       error
}

func (e *fakeEngine) Name() string        { return "fake" }
func (e *fakeEngine) DisplayName() string { return "Fake Engine" }
func (e *fakeEngine) IsReady() bool       { return true }
func (e *fakeEngine) Close() error        { return nil }

func (e *fakeEngine) Transcribe(_ context.Context, samples []float32, rate int, language string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gotSamples = samples
	e.gotRate = rate
	e.gotLang = language

	i := e.calls
	if i >= len(e.script) {
		i = len(e.script) - 1
	}
	e.calls++
	if i < 0 {
		return nil, nil
	}
	r := e.script[i]
	return r.fragments, r.err
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want []float32
	}{
		{
			name: "empty",
			in:   nil,
			want: []float32{},
		},
		{
			name: "zero stays zero",
			in:   []int16{0},
			want: []float32{0},
		},
		{
			name: "full scale",
			in:   []int16{math.MaxInt16, math.MinInt16},
			want: []float32{32767.0 / 32768, -1},
		},
		{
			name: "half scale",
			in:   []int16{16384, -16384},
			want: []float32{0.5, -0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDispatcher(t *testing.T) {
	seg := &ClosedSegment{
		Samples:    makeSpeech(4000, 5000),
		SampleRate: 16000,
		Duration:   250 * time.Millisecond,
		Cause:      CloseSilence,
	}

	tests := []struct {
		name      string
		fragments []string
		err       error
		want      string
		wantErr   bool
	}{
		{
			name:      "single fragment",
			fragments: []string{"hello world"},
			want:      "hello world",
		},
		{
			name:      "fragments joined with single spaces",
			fragments: []string{"this is", "one utterance", "in pieces"},
			want:      "this is one utterance in pieces",
		},
		{
			name:      "surrounding whitespace trimmed",
			fragments: []string{"  padded ", " text\n"},
			want:      "padded   text",
		},
		{
			name:      "no fragments means no line, not an error",
			fragments: nil,
			want:      "",
		},
		{
			name:      "whitespace-only result collapses to empty",
			fragments: []string{"  ", "\t"},
			want:      "",
		},
		{
			name:    "engine failure propagates",
			err:     errors.New("model exploded"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{script: []fakeResult{{fragments: tt.fragments, err: tt.err}}}
			d := NewDispatcher(engine, "en")

			got, err := d.Dispatch(context.Background(), seg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Dispatch() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatcherNormalizesForEngine(t *testing.T) {
	engine := &fakeEngine{script: []fakeResult{{fragments: []string{"ok"}}}}
	d := NewDispatcher(engine, "de")

	seg := &ClosedSegment{
		Samples:    []int16{0, 16384, -16384, math.MinInt16},
		SampleRate: 16000,
	}
	if _, err := d.Dispatch(context.Background(), seg); err != nil {
		t.Fatal(err)
	}

	want := []float32{0, 0.5, -0.5, -1}
	if len(engine.gotSamples) != len(want) {
		t.Fatalf("engine saw %d samples, want %d", len(engine.gotSamples), len(want))
	}
	for i, v := range want {
		if engine.gotSamples[i] != v {
			t.Errorf("sample %d = %v, want %v", i, engine.gotSamples[i], v)
		}
	}
	if engine.gotRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", engine.gotRate)
	}
	if engine.gotLang != "de" {
		t.Errorf("language = %q, want %q", engine.gotLang, "de")
	}
}

func TestDispatcherAllZeroSegment(t *testing.T) {
	// An all-zero segment normalizes to all-zero floats; an engine that
	// hears nothing returns no fragments and no line is produced.
	engine := &fakeEngine{}
	d := NewDispatcher(engine, "en")

	seg := &ClosedSegment{Samples: makeSilence(8000), SampleRate: 16000}
	got, err := d.Dispatch(context.Background(), seg)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if got != "" {
		t.Errorf("Dispatch() = %q, want empty", got)
	}
	for i, s := range engine.gotSamples {
		if s != 0 {
			t.Fatalf("sample %d = %v, want 0", i, s)
		}
	}
}
