package app

import (
	"context"
	"errors"
	"strings"

	"go.aimuz.me/hark/internal/types"
	"go.aimuz.me/hark/llm"
)

// ErrNothingToRefine is returned by Refine when neither the argument
// nor the transcript holds any text.
var ErrNothingToRefine = errors.New("nothing to refine")

// ErrNoProvider is returned by Refine when no active LLM provider is
// configured.
var ErrNoProvider = errors.New("no active llm provider configured")

// Refine runs the given text, or the whole transcript when text is
// empty, through the active LLM provider to clean up dictation
// punctuation. The wording is preserved; only punctuation, casing, and
// filler artifacts change.
func (s *Service) Refine(ctx context.Context, text string) (types.RefineResult, error) {
	if text == "" {
		text = s.joinedTranscript()
	}
	if strings.TrimSpace(text) == "" {
		return types.RefineResult{}, ErrNothingToRefine
	}

	s.mu.RLock()
	p := s.cfg.GetActiveProvider()
	s.mu.RUnlock()
	if p == nil {
		return types.RefineResult{}, ErrNoProvider
	}

	completer := llm.NewCompleter(p.Type, p.APIKey, p.BaseURL, p.Model, llm.Options{
		MaxTokens:       p.MaxTokens,
		Temperature:     p.Temperature,
		DisableThinking: p.DisableThinking,
	})
	return llm.NewRefiner(completer).Refine(ctx, text)
}

// joinedTranscript joins the transcript lines with newlines.
func (s *Service) joinedTranscript() string {
	lines := s.session.Lines()
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, "\n")
}
