package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/hark/audiocapture"
	"go.aimuz.me/hark/config"
	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/history"
	"go.aimuz.me/hark/stt"
)

// stubEngine transcribes the first segment to its fragments and stays
// silent for the rest.
type stubEngine struct {
	mu        sync.Mutex
	name      string
	fragments []string
	calls     int
}

func (e *stubEngine) Name() string        { return e.name }
func (e *stubEngine) DisplayName() string { return "Stub " + e.name }
func (e *stubEngine) IsReady() bool       { return true }
func (e *stubEngine) Close() error        { return nil }

func (e *stubEngine) Transcribe(context.Context, []float32, int, string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls == 1 {
		return e.fragments, nil
	}
	return nil, nil
}

// stubSource replays scripted frames, then idles on silent frames.
type stubSource struct {
	mu     sync.Mutex
	frames [][]int16
	next   int
	closed bool
}

func (s *stubSource) ReadFrame() (audiocapture.Frame, error) {
	time.Sleep(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audiocapture.Frame{}, audiocapture.ErrClosed
	}
	var samples []int16
	if s.next < len(s.frames) {
		samples = s.frames[s.next]
		s.next++
	} else {
		samples = make([]int16, 4000)
	}
	return audiocapture.Frame{Samples: samples, SampleRate: 16000}, nil
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// utterance scripts one spoken phrase: a loud frame and enough quiet
// frames to close the segment under the test configuration.
func utterance() [][]int16 {
	loud := make([]int16, 4000)
	for i := range loud {
		loud[i] = 5000
	}
	quiet := make([]int16, 4000)
	return [][]int16{loud, quiet, quiet}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.SilenceFramesToClose = 2
	cfg.MinSegmentSec = 0.001
	return cfg
}

func testService(t *testing.T, cfg *config.Config, engine stt.Engine, src audiocapture.Source, store *history.Store) *Service {
	t.Helper()

	reg := stt.NewRegistry()
	reg.Register(engine)

	open := func(int) (audiocapture.Source, error) { return src, nil }
	s, err := build(cfg, reg, engine, open, store)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestServiceTranscribeOnce(t *testing.T) {
	engine := &stubEngine{name: "fake", fragments: []string{"heard", "you"}}
	src := &stubSource{frames: utterance()}
	s := testService(t, testConfig(), engine, src, nil)

	text, err := s.TranscribeOnce(context.Background(), audiocapture.DefaultDevice, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if text != "heard you" {
		t.Errorf("text = %q, want %q", text, "heard you")
	}
	if s.Status().Recording {
		t.Error("still recording after TranscribeOnce")
	}
}

func TestServiceTranscribeOnceTimeout(t *testing.T) {
	engine := &stubEngine{name: "fake"}
	src := &stubSource{} // silence only
	s := testService(t, testConfig(), engine, src, nil)

	begin := time.Now()
	text, err := s.TranscribeOnce(context.Background(), audiocapture.DefaultDevice, 150*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if elapsed := time.Since(begin); elapsed > 2*time.Second {
		t.Errorf("TranscribeOnce took %v, want prompt timeout", elapsed)
	}
	if s.Status().Recording {
		t.Error("still recording after timeout")
	}
}

func TestServiceSinkFanout(t *testing.T) {
	engine := &stubEngine{name: "fake"}
	s := testService(t, testConfig(), engine, &stubSource{}, nil)

	var mu sync.Mutex
	gotA, gotB := 0, 0
	s.Subscribe(func(dictation.TranscriptLine) {
		mu.Lock()
		gotA++
		mu.Unlock()
	})
	idB := s.Subscribe(func(dictation.TranscriptLine) {
		mu.Lock()
		gotB++
		mu.Unlock()
	})

	line := dictation.TranscriptLine{Seq: 1, Text: "fan out", At: time.Now()}
	s.dispatchLine(line)

	s.Unsubscribe(idB)
	s.dispatchLine(line)

	mu.Lock()
	defer mu.Unlock()
	if gotA != 2 {
		t.Errorf("sink A received %d lines, want 2", gotA)
	}
	if gotB != 1 {
		t.Errorf("sink B received %d lines, want 1", gotB)
	}
}

func TestServiceArchivesLines(t *testing.T) {
	store, err := history.Open("")
	if err != nil {
		t.Fatal(err)
	}

	engine := &stubEngine{name: "fake", fragments: []string{"keep this"}}
	src := &stubSource{frames: utterance()}
	s := testService(t, testConfig(), engine, src, store)

	lines := make(chan dictation.TranscriptLine, 1)
	s.Subscribe(func(l dictation.TranscriptLine) {
		select {
		case lines <- l:
		default:
		}
	})

	if err := s.Start(audiocapture.DefaultDevice); err != nil {
		t.Fatal(err)
	}
	id := s.Status().SessionID

	select {
	case <-lines:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line")
	}
	s.Stop()

	entries, err := s.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Text != "keep this" {
		t.Errorf("Text = %q, want %q", entries[0].Text, "keep this")
	}
	if entries[0].Session != id {
		t.Errorf("Session = %q, want %q", entries[0].Session, id)
	}
}

func TestServiceHistoryUnavailable(t *testing.T) {
	s := testService(t, testConfig(), &stubEngine{name: "fake"}, &stubSource{}, nil)
	if _, err := s.History(5); err == nil {
		t.Error("History with no store succeeded")
	}
}

func TestServiceEngines(t *testing.T) {
	cfg := testConfig()
	first := &stubEngine{name: "fake"}
	second := &stubEngine{name: "other"}

	reg := stt.NewRegistry()
	reg.Register(first)
	reg.Register(second)

	open := func(int) (audiocapture.Source, error) { return &stubSource{}, nil }
	s, err := build(cfg, reg, first, open, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	infos := s.Engines()
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if !infos[0].Active || infos[1].Active {
		t.Errorf("active flags = %v/%v, want true/false", infos[0].Active, infos[1].Active)
	}

	if err := s.SelectEngine("other"); err != nil {
		t.Fatal(err)
	}
	if got := s.Status().Engine; got != "other" {
		t.Errorf("Status().Engine = %q, want %q", got, "other")
	}
	if cfg.Engine != "other" {
		t.Errorf("cfg.Engine = %q, want %q", cfg.Engine, "other")
	}

	if err := s.SelectEngine("missing"); err == nil {
		t.Error("SelectEngine with unknown name succeeded")
	}
}

func TestServiceCalibrate(t *testing.T) {
	quiet := make([]int16, 4000)
	for i := range quiet {
		quiet[i] = 400
	}
	src := &stubSource{frames: [][]int16{quiet, quiet, quiet, quiet}}

	cfg := testConfig()
	s := testService(t, cfg, &stubEngine{name: "fake"}, src, nil)

	threshold, err := s.Calibrate(300 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if threshold != 800 {
		t.Errorf("threshold = %d, want 800", threshold)
	}
	if cfg.SilenceThreshold != 800 {
		t.Errorf("cfg.SilenceThreshold = %d, want 800", cfg.SilenceThreshold)
	}
}

func TestServiceCalibrateWhileRecording(t *testing.T) {
	s := testService(t, testConfig(), &stubEngine{name: "fake"}, &stubSource{}, nil)

	if err := s.Start(audiocapture.DefaultDevice); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if _, err := s.Calibrate(time.Second); !errors.Is(err, dictation.ErrAlreadyRecording) {
		t.Errorf("err = %v, want ErrAlreadyRecording", err)
	}
}

func TestServiceRefineGuards(t *testing.T) {
	s := testService(t, testConfig(), &stubEngine{name: "fake"}, &stubSource{}, nil)

	// Empty transcript and no explicit text.
	if _, err := s.Refine(context.Background(), ""); err == nil {
		t.Error("Refine with nothing to refine succeeded")
	}

	// Text present but no provider configured.
	if _, err := s.Refine(context.Background(), "some dictated text"); err == nil {
		t.Error("Refine without an active provider succeeded")
	}
}

func TestDetectLangUntagged(t *testing.T) {
	// Detection failures report "auto"; the line tag maps that to empty.
	if got := detectLang("   "); got != "" {
		t.Errorf("detectLang on blank text = %q, want empty", got)
	}
}
