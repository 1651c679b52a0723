package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// WhisperLocal implements the Engine interface using local whisper.cpp.
// It uses the whisper-cpp CLI tool for transcription.
type WhisperLocal struct {
	modelPath string
	modelSize string // "tiny", "base", "small", "medium", "large"
	binPath   string // Path to whisper-cpp binary

	mu        sync.RWMutex
	ready     bool
	hasBinary bool
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	ModelSize string // "tiny", "base", "small", "medium", "large"
	ModelDir  string // Directory to store models
	BinPath   string // Path to whisper-cpp binary (optional, discovered if not set)
}

// Model sizes and their approximate download sizes.
var modelSizes = map[string]struct {
	URL  string
	Size int64 // Approximate size in bytes
}{
	"tiny":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin", 150 * 1024 * 1024},
	"small":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin", 500 * 1024 * 1024},
	"medium": {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin", 3000 * 1024 * 1024},
}

// NewWhisperLocal creates a new WhisperLocal engine.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "base"
	}

	if _, ok := modelSizes[cfg.ModelSize]; !ok {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}

	if cfg.ModelDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(homeDir, ".hark", "models")
	}

	w := &WhisperLocal{
		modelSize: cfg.ModelSize,
		modelPath: filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize)),
		binPath:   cfg.BinPath,
	}

	if binPath := w.findWhisperBinary(); binPath != "" {
		w.hasBinary = true
		w.binPath = binPath
	}

	// Ready only when both binary and model exist.
	if _, err := os.Stat(w.modelPath); err == nil && w.hasBinary {
		w.ready = true
	}

	return w, nil
}

func (w *WhisperLocal) Name() string { return "whisper-cpp" }

func (w *WhisperLocal) DisplayName() string {
	if !w.hasBinary {
		return fmt.Sprintf("Whisper.cpp (%s) [whisper-cpp binary missing]", w.modelSize)
	}
	return fmt.Sprintf("Whisper.cpp (%s)", w.modelSize)
}

// HasBinary returns true if the whisper-cpp binary is available.
func (w *WhisperLocal) HasBinary() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hasBinary
}

func (w *WhisperLocal) IsReady() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

// Setup downloads the whisper model if needed.
// The progress callback receives percentage (0-100).
func (w *WhisperLocal) Setup(progress func(percent int)) error {
	if w.IsReady() {
		return nil
	}

	modelInfo, ok := modelSizes[w.modelSize]
	if !ok {
		return fmt.Errorf("unknown model size: %s", w.modelSize)
	}

	if err := os.MkdirAll(filepath.Dir(w.modelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	if err := w.downloadModel(modelInfo.URL, modelInfo.Size, progress); err != nil {
		return fmt.Errorf("download model: %w", err)
	}

	w.mu.Lock()
	w.ready = w.hasBinary
	w.mu.Unlock()

	if progress != nil {
		progress(100)
	}

	return nil
}

func (w *WhisperLocal) downloadModel(url string, expectedSize int64, progress func(percent int)) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	tmpPath := w.modelPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // Clean up on failure
	}()

	var downloaded int64
	buf := make([]byte, 32*1024)
	lastProgress := 0

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write file: %w", werr)
			}
			downloaded += int64(n)

			if expectedSize > 0 && progress != nil {
				pct := int(downloaded * 100 / expectedSize)
				if pct > lastProgress {
					lastProgress = pct
					progress(pct)
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	if err := os.Rename(tmpPath, w.modelPath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}

	return nil
}

// Transcribe converts audio samples to text using local whisper.cpp.
// samples: mono PCM float32 normalized to [-1, 1]
// language: source language code (empty for auto-detect)
func (w *WhisperLocal) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) ([]string, error) {
	if !w.IsReady() {
		return nil, fmt.Errorf("whisper-cpp is not ready: model not downloaded")
	}

	audioPath := tempWAVPath()
	if err := writeFloatWAV(audioPath, samples, sampleRate); err != nil {
		return nil, fmt.Errorf("encode audio: %w", err)
	}
	defer os.Remove(audioPath)

	binPath := w.binPath
	if binPath == "" {
		binPath = w.findWhisperBinary()
	}
	if binPath == "" {
		return nil, fmt.Errorf("whisper-cpp binary not found, please install whisper.cpp")
	}

	// -oj writes <input>.json next to the audio file.
	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-oj",
		"--no-prints",
	}
	if language != "" && language != "auto" {
		args = append(args, "-l", language)
	}

	cmd := exec.CommandContext(ctx, binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper-cpp failed: %w, stderr: %s", err, stderr.String())
	}

	jsonPath := audioPath + ".json"
	defer os.Remove(jsonPath)

	if data, err := os.ReadFile(jsonPath); err == nil {
		return parseWhisperJSON(data)
	}

	// Older builds ignore -oj; fall back to the timestamped stdout lines.
	return fragmentsFromText(stdout.String()), nil
}

func (w *WhisperLocal) findWhisperBinary() string {
	// Common binary names - whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

func (w *WhisperLocal) Close() error {
	return nil
}

// whisperCppOutput represents the JSON document whisper.cpp writes with -oj.
type whisperCppOutput struct {
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

// parseWhisperJSON extracts cleaned text fragments from whisper.cpp JSON
// output, one per transcription segment.
func parseWhisperJSON(data []byte) ([]string, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	fragments := make([]string, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		if text := cleanFragment(seg.Text); text != "" {
			fragments = append(fragments, text)
		}
	}
	return fragments, nil
}

// fragmentsFromText extracts cleaned fragments from plain stdout lines.
func fragmentsFromText(s string) []string {
	var fragments []string
	for _, line := range strings.Split(s, "\n") {
		if text := cleanFragment(line); text != "" {
			fragments = append(fragments, text)
		}
	}
	return fragments
}

var (
	regexTimestamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3} --> \d{2}:\d{2}:\d{2}\.\d{3}\]`)
	regexArtifact  = regexp.MustCompile(`\[.*?\]`)
)

// cleanFragment strips whisper.cpp timestamp prefixes and bracketed sound
// tags such as [BLANK_AUDIO] or [MUSIC] from a transcription segment.
func cleanFragment(text string) string {
	text = regexTimestamp.ReplaceAllString(text, "")
	text = regexArtifact.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
