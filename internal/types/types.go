// Package types provides shared type definitions for the application.
package types

// Provider represents an LLM provider configuration.
type Provider struct {
	Name            string  `json:"name"`
	Type            string  `json:"type"` // "openai", "openai-compatible", "gemini", "claude"
	BaseURL         string  `json:"base_url,omitempty"`
	APIKey          string  `json:"api_key"`
	Model           string  `json:"model"`
	SystemPrompt    string  `json:"system_prompt,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	Active          bool    `json:"active"`
	DisableThinking bool    `json:"disable_thinking,omitempty"`
}

// DefaultMaxTokens is the default max tokens if not specified.
const DefaultMaxTokens = 1000

// DefaultTemperature is the default temperature if not specified.
const DefaultTemperature = 0.3

// Usage represents token usage statistics from LLM API calls.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Status represents the state of the recording session.
type Status struct {
	Recording bool   `json:"recording"`
	SessionID string `json:"sessionId,omitempty"`
	Device    int    `json:"device"`    // Selected input device index
	Engine    string `json:"engine"`    // Current STT engine name
	Language  string `json:"language,omitempty"`
	Duration  int64  `json:"duration"`  // Running duration in seconds
	Lines     int    `json:"lines"`     // Finalized transcript lines so far
	Level     int32  `json:"level"`     // Peak amplitude of the last captured frame
	LastError string `json:"lastError,omitempty"`
}

// EngineInfo represents information about an STT engine.
type EngineInfo struct {
	Name        string `json:"name"`        // Engine identifier
	DisplayName string `json:"displayName"` // Human-readable name
	IsReady     bool   `json:"isReady"`     // Whether the engine can transcribe now
	Active      bool   `json:"active"`      // Whether the session currently uses it
}

// DetectResult represents the result of language detection.
type DetectResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RefineResult represents a transcript refinement response.
type RefineResult struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// CalibrateResult represents a calibration run outcome.
type CalibrateResult struct {
	Threshold int32 `json:"threshold"` // Suggested silence threshold
	Saved     bool  `json:"saved"`     // Whether it was persisted to config
}
