// Package audiocapture provides microphone capture as a stream of fixed-size
// PCM frames, plus input device enumeration. The backend is PortAudio.
package audiocapture

import (
	"errors"
	"time"
)

// ErrDeviceUnavailable is returned when the requested input device does not
// exist or its stream cannot be opened.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// ErrOverflow is returned by ReadFrame when the device reported an input
// overflow for this read. The frame is dropped; the next read resynchronizes.
var ErrOverflow = errors.New("input overflowed")

// ErrClosed is returned by ReadFrame after Close.
var ErrClosed = errors.New("source closed")

// DefaultDevice selects the system default input device in Open.
const DefaultDevice = -1

// Frame is one fixed-size block of consecutively sampled mono audio.
// Immutable once produced.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the wall-clock span the frame covers.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Device describes an input-capable audio device.
type Device struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Channels int    `json:"channels"`
	Default  bool   `json:"default"`
}

// Config holds capture stream geometry. The frame size is fixed for the
// lifetime of a stream.
type Config struct {
	SampleRate int // default 16000 Hz
	FrameSize  int // samples per frame, default 4000 (250 ms at 16 kHz)
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000, // Whisper expects 16kHz
		FrameSize:  4000,
	}
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameSize <= 0 {
		c.FrameSize = 4000
	}
	return c
}

// FrameDuration returns the span one frame covers under this config.
func (c Config) FrameDuration() time.Duration {
	c = c.withDefaults()
	return time.Duration(c.FrameSize) * time.Second / time.Duration(c.SampleRate)
}

// Source yields frames from an open input stream. ReadFrame blocks until a
// full frame is available. A read that returns ErrOverflow dropped its frame
// but the source remains usable.
type Source interface {
	ReadFrame() (Frame, error)
	Close() error
}

// Open opens an input stream on the given device index (DefaultDevice for the
// system default) and returns a Source producing cfg-sized frames.
func Open(deviceIndex int, cfg Config) (Source, error) {
	return openStream(deviceIndex, cfg.withDefaults())
}
