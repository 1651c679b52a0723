package llm

import (
	"context"
	"fmt"
	"strings"

	"go.aimuz.me/hark/internal/types"
)

// The prompt forbids rewording; the pass only fixes mechanics.
const refineSystemPrompt = "You clean up dictated speech-to-text output. " +
	"Fix punctuation, capitalization, sentence breaks and obvious " +
	"transcription mistakes. Never reword, never summarize, never add " +
	"content, never translate. Reply with the cleaned text only."

// Refiner runs transcript text through an LLM cleanup pass.
type Refiner struct {
	completer Completer
}

// NewRefiner creates a Refiner on top of c.
func NewRefiner(c Completer) *Refiner {
	return &Refiner{completer: c}
}

// Refine cleans up text. Empty input returns an empty result without
// calling the model.
func (r *Refiner) Refine(ctx context.Context, text string) (types.RefineResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.RefineResult{}, nil
	}

	messages := []Message{
		{Role: "system", Content: refineSystemPrompt},
		{Role: "user", Content: text},
	}

	out, usage, err := r.completer.Complete(ctx, messages)
	if err != nil {
		return types.RefineResult{}, fmt.Errorf("refine transcript: %w", err)
	}

	return types.RefineResult{Text: strings.TrimSpace(out), Usage: usage}, nil
}
