// Package dictation implements the live dictation pipeline: microphone
// frames are cut into segments on silence boundaries, closed segments are
// dispatched to a speech-to-text engine, and the results accumulate in an
// append-only transcript.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/hark/audiocapture"
	"go.aimuz.me/hark/internal/types"
	"go.aimuz.me/hark/stt"
)

// ErrAlreadyRecording is returned by Start while a capture loop is active.
var ErrAlreadyRecording = errors.New("dictation: already recording")

// DetectFunc tags finalized text with a language code.
// An empty result leaves the line untagged.
type DetectFunc func(text string) string

// OpenFunc opens the audio source for a device index.
type OpenFunc func(deviceIndex int) (audiocapture.Source, error)

// Config holds configuration for a recording session.
type Config struct {
	// Engine turns closed segments into text. Required.
	Engine stt.Engine

	// Open opens the audio source for Start's device index.
	// Defaults to audiocapture.Open with this configuration's geometry.
	Open OpenFunc

	// Metrics receives pipeline measurements. Optional.
	Metrics Metrics

	// Detect tags finalized lines with a language code. Optional.
	Detect DetectFunc

	SampleRate           int           // Capture sample rate in Hz
	FrameSize            int           // Samples per frame
	SilenceThreshold     int32         // Peak amplitude below which a frame is silent
	SilenceFramesToClose int           // Consecutive silent frames that close a segment
	MinSegmentDuration   time.Duration // Natural closure requires more audio than this
	MaxSegmentDuration   time.Duration // Cap past which closure is forced
	Language             string        // Language hint passed to the engine
}

// DefaultConfig returns the default session configuration.
// 4000-sample frames at 16 kHz are 250 ms each, so 8 silent frames
// close a segment after roughly two seconds of quiet.
func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		FrameSize:            4000,
		SilenceThreshold:     300,
		SilenceFramesToClose: 8,
		MinSegmentDuration:   time.Second,
		MaxSegmentDuration:   30 * time.Second,
		Language:             "en",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = d.FrameSize
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = d.SilenceThreshold
	}
	if c.SilenceFramesToClose <= 0 {
		c.SilenceFramesToClose = d.SilenceFramesToClose
	}
	if c.MinSegmentDuration <= 0 {
		c.MinSegmentDuration = d.MinSegmentDuration
	}
	if c.MaxSegmentDuration <= 0 {
		c.MaxSegmentDuration = d.MaxSegmentDuration
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	return c
}

func (c Config) validate() error {
	if c.Engine == nil {
		return errors.New("dictation: engine required")
	}
	if c.MaxSegmentDuration < c.MinSegmentDuration {
		return fmt.Errorf("dictation: max segment duration %v below min %v",
			c.MaxSegmentDuration, c.MinSegmentDuration)
	}
	return nil
}

// Session is the concurrency-safe recording controller. It owns the run
// flag, the transcript, and the single capture goroutine per recording.
// All public operations may be called concurrently.
type Session struct {
	cfg Config

	mu        sync.RWMutex
	engine    stt.Engine
	running   bool
	stopping  bool
	id        string
	device    int
	startedAt time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	lastErr   error
	level     int32
	onLine    []func(TranscriptLine)
	onSegment []func(*ClosedSegment)

	transcript *Transcript
	metrics    Metrics
	detect     DetectFunc
	open       OpenFunc
}

// NewSession creates an idle recording session.
func NewSession(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:        cfg,
		engine:     cfg.Engine,
		transcript: NewTranscript(),
		metrics:    cfg.Metrics,
		detect:     cfg.Detect,
		open:       cfg.Open,
		device:     audiocapture.DefaultDevice,
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.open == nil {
		s.open = func(deviceIndex int) (audiocapture.Source, error) {
			return audiocapture.Open(deviceIndex, audiocapture.Config{
				SampleRate: cfg.SampleRate,
				FrameSize:  cfg.FrameSize,
			})
		}
	}
	return s, nil
}

// Start opens the input device and launches the capture loop. It does
// not block on capture; a second start while recording is rejected with
// ErrAlreadyRecording and leaves the session untouched.
func (s *Session) Start(deviceIndex int) error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		return ErrAlreadyRecording
	}

	src, err := s.open(deviceIndex)
	if err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		src.Close()
		return ErrAlreadyRecording
	}
	s.running = true
	s.stopping = false
	s.id = uuid.NewString()
	s.device = deviceIndex
	s.startedAt = time.Now()
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.lastErr = nil
	id, stop, done := s.id, s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.loop(src, stop, done)

	slog.Info("recording started", "session", id, "device", deviceIndex)
	return nil
}

// Stop signals the capture loop and waits for it to exit. Idempotent;
// calling it while idle is a no-op. The loop observes the signal at the
// next frame boundary, so the wait is bounded by one frame period plus
// any transcription already in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if !s.stopping {
		s.stopping = true
		close(s.stopCh)
	}
	done := s.doneCh
	s.mu.Unlock()

	<-done
}

// Status returns a non-blocking snapshot of the session state.
func (s *Session) Status() types.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Status{
		Recording: s.running,
		Device:    s.device,
		Engine:    s.engine.Name(),
		Language:  s.cfg.Language,
		Lines:     s.transcript.Len(),
		Level:     s.level,
	}
	if s.running {
		st.SessionID = s.id
		st.Duration = int64(time.Since(s.startedAt).Seconds())
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Lines returns a snapshot of the transcript so far.
func (s *Session) Lines() []TranscriptLine {
	return s.transcript.Lines()
}

// LinesSince returns the lines appended after the given sequence number.
func (s *Session) LinesSince(seq int) []TranscriptLine {
	return s.transcript.Since(seq)
}

// Clear empties the transcript. Recording state and any partially
// buffered segment are untouched.
func (s *Session) Clear() {
	s.transcript.Clear()
}

// OnLine registers a callback invoked for every finalized line.
// Callbacks run on the capture goroutine with no session locks held.
func (s *Session) OnLine(cb func(TranscriptLine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLine = append(s.onLine, cb)
}

// OnSegment registers a callback invoked for every closed segment before
// it is transcribed. Callbacks run on the capture goroutine and must
// treat the segment samples as read-only.
func (s *Session) OnSegment(cb func(*ClosedSegment)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSegment = append(s.onSegment, cb)
}

// SetSilenceThreshold replaces the silence threshold used by subsequent
// recordings. A capture loop already running keeps the threshold it
// started with.
func (s *Session) SetSilenceThreshold(v int32) {
	if v <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SilenceThreshold = v
}

// SetEngine replaces the transcription engine. A segment already being
// transcribed finishes on the engine it started with.
func (s *Session) SetEngine(e stt.Engine) {
	if e == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = e
}

// Engine returns the current transcription engine.
func (s *Session) Engine() stt.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// loop reads frames until stopped or the source fails. It owns src and
// closes it on the way out.
func (s *Session) loop(src audiocapture.Source, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.mu.RLock()
	cfg := s.cfg
	s.mu.RUnlock()

	acc := NewAccumulator(cfg.SilenceThreshold, cfg.SilenceFramesToClose,
		cfg.MinSegmentDuration, cfg.MaxSegmentDuration)

	for {
		frame, err := src.ReadFrame()

		select {
		case <-stop:
			s.finish(src, nil)
			return
		default:
		}

		if errors.Is(err, audiocapture.ErrOverflow) {
			s.metrics.RecordOverflow()
			slog.Warn("input overflow, frame dropped")
			continue
		}
		if err != nil {
			s.finish(src, err)
			return
		}

		peak := Peak(frame.Samples)
		s.metrics.RecordFrame(peak)
		s.setLevel(peak)

		seg := acc.Append(frame)
		if seg == nil {
			continue
		}
		s.metrics.RecordSegment(seg.Cause.String(), seg.Duration)
		s.handleSegment(seg)
	}
}

// handleSegment transcribes one closed segment and appends the result.
// No session locks are held across the engine call, so readers are
// never blocked by a slow engine. Engine failures drop the segment and
// the loop carries on.
func (s *Session) handleSegment(seg *ClosedSegment) {
	s.mu.RLock()
	engine := s.engine
	language := s.cfg.Language
	observers := make([]func(*ClosedSegment), len(s.onSegment))
	copy(observers, s.onSegment)
	s.mu.RUnlock()

	for _, cb := range observers {
		cb(seg)
	}

	d := NewDispatcher(engine, language)
	begin := time.Now()
	text, err := d.Dispatch(context.Background(), seg)
	s.metrics.RecordTranscription(time.Since(begin), err != nil)
	if err != nil {
		slog.Error("transcribe segment", "error", err, "cause", seg.Cause, "duration", seg.Duration)
		return
	}
	if text == "" {
		return
	}

	lang := ""
	if s.detect != nil {
		lang = s.detect(text)
	}

	line := s.transcript.Append(text, lang)
	s.metrics.RecordLine()

	s.mu.RLock()
	callbacks := make([]func(TranscriptLine), len(s.onLine))
	copy(callbacks, s.onLine)
	s.mu.RUnlock()

	for _, cb := range callbacks {
		cb(line)
	}
}

func (s *Session) setLevel(peak int32) {
	s.mu.Lock()
	s.level = peak
	s.mu.Unlock()
}

// finish closes the source and returns the session to idle.
// err is nil on a requested stop; a fatal read error is kept for
// Status to surface.
func (s *Session) finish(src audiocapture.Source, err error) {
	if cerr := src.Close(); cerr != nil {
		slog.Error("close audio source", "error", cerr)
	}

	s.mu.Lock()
	s.running = false
	s.level = 0
	s.lastErr = err
	id := s.id
	dur := time.Since(s.startedAt)
	s.mu.Unlock()

	if err != nil {
		slog.Error("recording aborted", "session", id, "error", err)
		return
	}
	slog.Info("recording stopped", "session", id, "duration", dur)
}
