package dictation

import (
	"sort"
	"sync"
	"time"
)

// TranscriptLine is one finalized line of recognized speech.
// Immutable after append.
type TranscriptLine struct {
	Seq  int       `json:"seq"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	Lang string    `json:"lang,omitempty"`
}

// Transcript is an append-only ordered sequence of finalized lines.
// One writer appends while any number of readers take snapshots.
type Transcript struct {
	mu    sync.RWMutex
	lines []TranscriptLine
	seq   int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a finalized line and returns it with its ordinal assigned.
func (t *Transcript) Append(text, lang string) TranscriptLine {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	line := TranscriptLine{
		Seq:  t.seq,
		Text: text,
		At:   time.Now(),
		Lang: lang,
	}
	t.lines = append(t.lines, line)
	return line
}

// Lines returns a snapshot copy of all lines in append order.
func (t *Transcript) Lines() []TranscriptLine {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]TranscriptLine, len(t.lines))
	copy(result, t.lines)
	return result
}

// Since returns a snapshot of lines with Seq greater than seq,
// in append order. Pollers pass the last Seq they saw.
func (t *Transcript) Since(seq int) []TranscriptLine {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.lines), func(i int) bool {
		return t.lines[i].Seq > seq
	})
	result := make([]TranscriptLine, len(t.lines)-i)
	copy(result, t.lines[i:])
	return result
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.lines)
}

// Clear removes all lines. Sequence numbers keep rising across a clear,
// so a poller never sees an ordinal reused for different text.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = t.lines[:0]
}
