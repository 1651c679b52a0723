// Package app wires the dictation pipeline to its shells. The console
// binary and the HTTP server both drive a single Service, which owns
// the engine registry, the recording session, the history archive, and
// the line sink fan-out.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go.aimuz.me/hark/audiocapture"
	"go.aimuz.me/hark/config"
	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/history"
	"go.aimuz.me/hark/internal/metrics"
	"go.aimuz.me/hark/internal/types"
	"go.aimuz.me/hark/langdetect"
	"go.aimuz.me/hark/stt"
)

// Service is the shared application core behind the console and HTTP
// shells. All public methods may be called concurrently.
type Service struct {
	cfg     *config.Config
	engines *stt.Registry
	session *dictation.Session
	store   *history.Store // nil when the archive could not be opened
	open    dictation.OpenFunc
	reg     *prometheus.Registry

	mu        sync.RWMutex
	sinks     map[int]Sink
	nextSink  int
	sessionID string
}

// New builds a ready-to-use service: engines from the configuration, a
// recording session, and the history archive under the user config
// directory. A failed archive open only disables history.
func New(cfg *config.Config) (*Service, error) {
	engines, engine, err := buildEngines(cfg)
	if err != nil {
		return nil, err
	}
	return build(cfg, engines, engine, nil, openHistory())
}

// build assembles a service from explicit parts. Tests inject fake
// engines and sources here.
func build(cfg *config.Config, engines *stt.Registry, engine stt.Engine, open dictation.OpenFunc, store *history.Store) (*Service, error) {
	if open == nil {
		open = func(device int) (audiocapture.Source, error) {
			return audiocapture.Open(device, audiocapture.Config{
				SampleRate: cfg.SampleRate,
				FrameSize:  cfg.FrameSize,
			})
		}
	}

	reg := prometheus.NewRegistry()
	s := &Service{
		cfg:     cfg,
		engines: engines,
		store:   store,
		open:    open,
		reg:     reg,
		sinks:   make(map[int]Sink),
	}

	sess, err := dictation.NewSession(dictation.Config{
		Engine:               engine,
		Open:                 open,
		Metrics:              metrics.New(reg),
		Detect:               detectLang,
		SampleRate:           cfg.SampleRate,
		FrameSize:            cfg.FrameSize,
		SilenceThreshold:     cfg.SilenceThreshold,
		SilenceFramesToClose: cfg.SilenceFramesToClose,
		MinSegmentDuration:   cfg.MinSegmentDuration(),
		MaxSegmentDuration:   cfg.MaxSegmentDuration(),
		Language:             cfg.Language,
	})
	if err != nil {
		return nil, err
	}
	s.session = sess

	sess.OnLine(s.dispatchLine)
	if cfg.SaveAudioDir != "" {
		if err := os.MkdirAll(cfg.SaveAudioDir, 0o755); err != nil {
			slog.Warn("create segment dump dir", "error", err, "dir", cfg.SaveAudioDir)
		}
		sess.OnSegment(s.dumpSegment)
	}

	return s, nil
}

// buildEngines registers the two whisper engines and picks the
// configured one. An unknown name in the configuration falls back to
// the local engine.
func buildEngines(cfg *config.Config) (*stt.Registry, stt.Engine, error) {
	local, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
		ModelSize: cfg.Whisper.ModelSize,
		ModelDir:  cfg.Whisper.ModelDir,
		BinPath:   cfg.Whisper.BinPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init whisper.cpp engine: %w", err)
	}

	apiKey := cfg.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	api := stt.NewWhisperAPI(stt.WhisperAPIConfig{
		APIKey:  apiKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	})

	reg := stt.NewRegistry()
	reg.Register(local)
	reg.Register(api)

	engine := reg.Get(cfg.Engine)
	if engine == nil {
		slog.Warn("unknown engine in config, using local", "engine", cfg.Engine)
		engine = local
	}
	return reg, engine, nil
}

// openHistory opens the archive under the user config directory.
// Failures log and disable history rather than aborting startup.
func openHistory() *history.Store {
	dir, err := config.HistoryDir()
	if err != nil {
		slog.Warn("resolve history dir, archive disabled", "error", err)
		return nil
	}
	store, err := history.Open(dir)
	if err != nil {
		slog.Warn("open history store, archive disabled", "error", err)
		return nil
	}
	return store
}

// detectLang tags a finalized line with its language code. The
// detector reports "auto" when it cannot tell; such lines stay
// untagged.
func detectLang(text string) string {
	code, _ := langdetect.Detect(text)
	if code == "auto" {
		return ""
	}
	return code
}

// Close stops any recording and releases the engines and the archive.
func (s *Service) Close() {
	s.session.Stop()
	if err := s.engines.Close(); err != nil {
		slog.Error("close engines", "error", err)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Error("close history store", "error", err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Recording control
// ─────────────────────────────────────────────────────────────────────────────

// Start begins recording on the given device index
// (audiocapture.DefaultDevice for the system default).
func (s *Service) Start(device int) error {
	if err := s.session.Start(device); err != nil {
		return err
	}
	st := s.session.Status()
	s.mu.Lock()
	s.sessionID = st.SessionID
	s.mu.Unlock()
	return nil
}

// Stop ends the current recording. Idempotent.
func (s *Service) Stop() {
	s.session.Stop()
}

// Status returns a snapshot of the session state.
func (s *Service) Status() types.Status {
	return s.session.Status()
}

// Lines returns the transcript so far.
func (s *Service) Lines() []dictation.TranscriptLine {
	return s.session.Lines()
}

// LinesSince returns the lines appended after the given sequence
// number, in closure order.
func (s *Service) LinesSince(seq int) []dictation.TranscriptLine {
	return s.session.LinesSince(seq)
}

// Clear empties the transcript without touching the recording state.
func (s *Service) Clear() {
	s.session.Clear()
}

// TranscribeOnce records until the first finalized line or the
// timeout, whichever comes first, then stops. An empty result with a
// nil error means nothing was heard in time.
func (s *Service) TranscribeOnce(ctx context.Context, device int, timeout time.Duration) (string, error) {
	lineCh := make(chan dictation.TranscriptLine, 1)
	id := s.Subscribe(func(l dictation.TranscriptLine) {
		select {
		case lineCh <- l:
		default:
		}
	})
	defer s.Unsubscribe(id)

	if err := s.Start(device); err != nil {
		return "", err
	}
	defer s.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-lineCh:
		return line.Text, nil
	case <-timer.C:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Devices and engines
// ─────────────────────────────────────────────────────────────────────────────

// Devices lists the input-capable audio devices.
func (s *Service) Devices() ([]audiocapture.Device, error) {
	return audiocapture.ListDevices()
}

// Engines lists the registered engines with readiness and which one
// the session currently uses.
func (s *Service) Engines() []types.EngineInfo {
	active := s.session.Engine().Name()
	list := s.engines.List()
	infos := make([]types.EngineInfo, 0, len(list))
	for _, e := range list {
		infos = append(infos, types.EngineInfo{
			Name:        e.Name(),
			DisplayName: e.DisplayName(),
			IsReady:     e.IsReady(),
			Active:      e.Name() == active,
		})
	}
	return infos
}

// SelectEngine switches the session to the named engine. A segment
// already being transcribed finishes on the engine it started with.
func (s *Service) SelectEngine(name string) error {
	e := s.engines.Get(name)
	if e == nil {
		return fmt.Errorf("unknown engine %q", name)
	}
	s.session.SetEngine(e)
	s.mu.Lock()
	s.cfg.Engine = e.Name()
	s.mu.Unlock()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Calibration
// ─────────────────────────────────────────────────────────────────────────────

// Calibrate samples ambient noise for the given duration and adopts
// the suggested silence threshold for subsequent recordings. The
// microphone must be free; calibrating while recording is rejected.
func (s *Service) Calibrate(d time.Duration) (int32, error) {
	if s.session.Status().Recording {
		return 0, dictation.ErrAlreadyRecording
	}

	s.mu.RLock()
	device := s.cfg.Device
	s.mu.RUnlock()

	src, err := s.open(device)
	if err != nil {
		return 0, fmt.Errorf("open audio source: %w", err)
	}
	defer src.Close()

	threshold, err := dictation.Calibrate(src, d)
	if err != nil {
		return 0, err
	}

	s.session.SetSilenceThreshold(threshold)
	s.mu.Lock()
	s.cfg.SilenceThreshold = threshold
	s.mu.Unlock()

	slog.Info("calibrated silence threshold", "threshold", threshold)
	return threshold, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// History, language, config
// ─────────────────────────────────────────────────────────────────────────────

// ErrHistoryUnavailable is returned by History when the archive could
// not be opened at startup.
var ErrHistoryUnavailable = errors.New("history archive unavailable")

// History returns up to n recently archived lines, oldest first,
// across all sessions.
func (s *Service) History(n int) ([]history.Entry, error) {
	if s.store == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.store.Recent(n)
}

// DetectLanguage reports the language of the given text. The code is
// "auto" when detection fails.
func (s *Service) DetectLanguage(text string) types.DetectResult {
	code, name := langdetect.Detect(text)
	return types.DetectResult{Code: code, Name: name}
}

// SaveConfig persists the current configuration, including any
// calibrated threshold and engine selection.
func (s *Service) SaveConfig() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Save()
}

// Registry exposes the metrics registry for the HTTP shell.
func (s *Service) Registry() *prometheus.Registry {
	return s.reg
}
