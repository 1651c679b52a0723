// Package stt provides speech-to-text engine interface and implementations.
package stt

import "context"

// Engine defines the interface for speech-to-text engines.
// Both local (whisper.cpp) and remote (OpenAI API) implementations
// must satisfy this interface.
type Engine interface {
	// Name returns the engine identifier.
	Name() string

	// DisplayName returns the human-readable engine name.
	DisplayName() string

	// IsReady returns true if the engine can transcribe now.
	IsReady() bool

	// Transcribe converts audio samples to text fragments.
	// samples: mono PCM float32 normalized to [-1, 1]
	// language: source language code (empty for auto-detect)
	// An empty fragment list means nothing was understood; that is
	// a normal result, not an error.
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) ([]string, error)

	// Close releases resources held by the engine.
	Close() error
}

// Registry holds registered STT engines in registration order.
type Registry struct {
	engines map[string]Engine
	order   []string
}

// NewRegistry creates a new engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine to the registry. Registering the same name
// again replaces the engine but keeps its original position.
func (r *Registry) Register(e Engine) {
	if _, ok := r.engines[e.Name()]; !ok {
		r.order = append(r.order, e.Name())
	}
	r.engines[e.Name()] = e
}

// Get returns an engine by name, or nil if not registered.
func (r *Registry) Get(name string) Engine {
	return r.engines[name]
}

// List returns all registered engines in registration order.
func (r *Registry) List() []Engine {
	result := make([]Engine, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.engines[name])
	}
	return result
}

// Close releases all engines.
func (r *Registry) Close() error {
	for _, name := range r.order {
		if err := r.engines[name].Close(); err != nil {
			return err
		}
	}
	return nil
}
