package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/history"
	"go.aimuz.me/hark/stt"
)

// Sink receives finalized transcript lines.
type Sink func(dictation.TranscriptLine)

// Subscribe registers a sink for finalized lines and returns a token
// for Unsubscribe. Sinks run on the capture goroutine and should
// return promptly.
func (s *Service) Subscribe(sink Sink) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSink++
	s.sinks[s.nextSink] = sink
	return s.nextSink
}

// Unsubscribe removes a sink registered with Subscribe.
func (s *Service) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sinks, id)
}

// dispatchLine archives one finalized line and fans it out to the
// subscribed sinks.
func (s *Service) dispatchLine(line dictation.TranscriptLine) {
	s.archive(line)

	s.mu.RLock()
	sinks := make([]Sink, 0, len(s.sinks))
	for _, sink := range s.sinks {
		sinks = append(sinks, sink)
	}
	s.mu.RUnlock()

	for _, sink := range sinks {
		sink(line)
	}
}

// archive appends the line to the history store, best effort.
func (s *Service) archive(line dictation.TranscriptLine) {
	if s.store == nil {
		return
	}

	s.mu.RLock()
	id := s.sessionID
	s.mu.RUnlock()

	err := s.store.Append(history.Entry{
		Session: id,
		Seq:     line.Seq,
		Text:    line.Text,
		Lang:    line.Lang,
		At:      line.At,
	})
	if err != nil {
		slog.Error("archive transcript line", "error", err)
	}
}

// dumpSegment writes one closed segment as a WAV file for threshold
// debugging. Failures only log; dumps never abort the pipeline.
func (s *Service) dumpSegment(seg *dictation.ClosedSegment) {
	name := fmt.Sprintf("segment-%s-%s.wav",
		time.Now().Format("20060102-150405.000"), seg.Cause)
	path := filepath.Join(s.cfg.SaveAudioDir, name)
	if err := stt.WriteWAVFile(path, seg.Samples, seg.SampleRate); err != nil {
		slog.Error("save segment audio", "error", err, "path", path)
	}
}
