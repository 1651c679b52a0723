// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.aimuz.me/hark/internal/types"
)

const (
	appName        = "hark"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	// Capture and segmentation
	Engine               string  `json:"engine"`
	Device               int     `json:"device"`
	Language             string  `json:"language"`
	SampleRate           int     `json:"sample_rate"`
	FrameSize            int     `json:"frame_size"`
	SilenceThreshold     int32   `json:"silence_threshold"`
	SilenceFramesToClose int     `json:"silence_frames_to_close"`
	MinSegmentSec        float64 `json:"min_segment_sec"`
	MaxSegmentSec        float64 `json:"max_segment_sec"`

	// Engine backends
	OpenAI  OpenAIConfig  `json:"openai"`
	Whisper WhisperConfig `json:"whisper"`

	// Console shell
	Hotkey       string `json:"hotkey,omitempty"`
	SaveAudioDir string `json:"save_audio_dir,omitempty"`

	// Refinement providers
	Providers []types.Provider `json:"providers,omitempty"`
}

// OpenAIConfig configures the Whisper API engine.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// WhisperConfig configures the local whisper.cpp engine.
type WhisperConfig struct {
	ModelSize string `json:"model_size,omitempty"`
	ModelDir  string `json:"model_dir,omitempty"`
	BinPath   string `json:"bin_path,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Engine:               "whisper-cpp",
		Device:               -1,
		Language:             "en",
		SampleRate:           16000,
		FrameSize:            4000,
		SilenceThreshold:     300,
		SilenceFramesToClose: 8,
		MinSegmentSec:        1,
		MaxSegmentSec:        30,
		Hotkey:               "f8",
	}
}

// Load loads configuration from the default config file.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save persists the configuration to the default config file.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveTo(path)
}

// SaveTo persists the configuration to path, creating directories as
// needed.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SilenceThreshold < 0 {
		return fmt.Errorf("silence_threshold %d is negative", c.SilenceThreshold)
	}
	if c.MaxSegmentSec < c.MinSegmentSec {
		return fmt.Errorf("max_segment_sec %v below min_segment_sec %v", c.MaxSegmentSec, c.MinSegmentSec)
	}
	return nil
}

// MinSegmentDuration returns the minimum segment length.
func (c *Config) MinSegmentDuration() time.Duration {
	return time.Duration(c.MinSegmentSec * float64(time.Second))
}

// MaxSegmentDuration returns the forced-closure cap.
func (c *Config) MaxSegmentDuration() time.Duration {
	return time.Duration(c.MaxSegmentSec * float64(time.Second))
}

// applyDefaults fills zero values so a hand-edited partial file still
// loads.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Engine == "" {
		c.Engine = d.Engine
	}
	if c.Device == 0 {
		c.Device = d.Device
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = d.FrameSize
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = d.SilenceThreshold
	}
	if c.SilenceFramesToClose <= 0 {
		c.SilenceFramesToClose = d.SilenceFramesToClose
	}
	if c.MinSegmentSec <= 0 {
		c.MinSegmentSec = d.MinSegmentSec
	}
	if c.MaxSegmentSec <= 0 {
		c.MaxSegmentSec = d.MaxSegmentSec
	}
	if c.Hotkey == "" {
		c.Hotkey = d.Hotkey
	}
}

// HistoryDir returns the directory for the transcript archive.
func HistoryDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, "history"), nil
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Refinement Provider Management
// ─────────────────────────────────────────────────────────────────────────────

// AddProvider adds a refinement provider. The caller saves.
func (c *Config) AddProvider(p types.Provider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	providerDefaults(&p)

	// First provider or explicitly active: deactivate others
	if len(c.Providers) == 0 || p.Active {
		for i := range c.Providers {
			c.Providers[i].Active = false
		}
		p.Active = true
	}

	c.Providers = append(c.Providers, p)
	return nil
}

// RemoveProvider removes a provider by name.
func (c *Config) RemoveProvider(name string) error {
	idx := slices.IndexFunc(c.Providers, func(p types.Provider) bool {
		return p.Name == name
	})
	if idx == -1 {
		return fmt.Errorf("provider not found: %s", name)
	}

	wasActive := c.Providers[idx].Active
	c.Providers = slices.Delete(c.Providers, idx, idx+1)

	if wasActive && len(c.Providers) > 0 {
		c.Providers[0].Active = true
	}

	return nil
}

// SetProviderActive marks the named provider active.
func (c *Config) SetProviderActive(name string) error {
	found := false
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			c.Providers[i].Active = true
			found = true
		} else {
			c.Providers[i].Active = false
		}
	}
	if !found {
		return fmt.Errorf("provider not found: %s", name)
	}
	return nil
}

// GetActiveProvider returns the currently active provider.
func (c *Config) GetActiveProvider() *types.Provider {
	for i := range c.Providers {
		if c.Providers[i].Active {
			p := c.Providers[i]
			return &p
		}
	}
	// Auto-activate first if none active
	if len(c.Providers) > 0 {
		c.Providers[0].Active = true
		p := c.Providers[0]
		return &p
	}
	return nil
}

func validateProvider(p types.Provider) error {
	if p.Name == "" {
		return fmt.Errorf("provider name required")
	}
	if p.APIKey == "" {
		return fmt.Errorf("api key required")
	}
	if p.Model == "" {
		return fmt.Errorf("model required")
	}
	if p.Type == "openai-compatible" && p.BaseURL == "" {
		return fmt.Errorf("base url required for openai-compatible")
	}
	return nil
}

func providerDefaults(p *types.Provider) {
	if p.MaxTokens == 0 {
		p.MaxTokens = types.DefaultMaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = types.DefaultTemperature
	}
}
