package dictation

import (
	"errors"
	"testing"
	"time"

	"go.aimuz.me/hark/audiocapture"
)

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name   string
		script []fakeRead
		want   int32
	}{
		{
			name: "noisy room doubles the ambient peak",
			script: []fakeRead{
				{samples: makeSpeech(4000, 80)},
				{samples: makeSpeech(4000, 120)},
			},
			want: 240,
		},
		{
			name: "quiet room hits the floor",
			script: []fakeRead{
				{samples: makeSpeech(4000, 10)},
				{samples: makeSpeech(4000, 10)},
			},
			want: 100,
		},
		{
			name: "overflow reads are skipped",
			script: []fakeRead{
				{samples: makeSpeech(4000, 90)},
				{err: audiocapture.ErrOverflow},
				{samples: makeSpeech(4000, 70)},
			},
			want: 180,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(0, tt.script...)
			got, err := Calibrate(src, 500*time.Millisecond)
			if err != nil {
				t.Fatalf("Calibrate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Calibrate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalibrateReadError(t *testing.T) {
	src := newFakeSource(0, fakeRead{err: errors.New("device gone")})
	if _, err := Calibrate(src, time.Second); err == nil {
		t.Error("Calibrate() with failing source succeeded")
	}
}
