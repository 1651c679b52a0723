package dictation

import (
	"sync"
	"testing"
)

func TestTranscriptAppendOrder(t *testing.T) {
	tr := NewTranscript()

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		tr.Append(text, "")
	}

	lines := tr.Lines()
	if len(lines) != 3 {
		t.Fatalf("len(Lines()) = %d, want 3", len(lines))
	}
	for i, line := range lines {
		if line.Seq != i+1 {
			t.Errorf("line %d: Seq = %d, want %d", i, line.Seq, i+1)
		}
		if line.Text != texts[i] {
			t.Errorf("line %d: Text = %q, want %q", i, line.Text, texts[i])
		}
		if line.At.IsZero() {
			t.Errorf("line %d: zero timestamp", i)
		}
	}
}

func TestTranscriptSince(t *testing.T) {
	tr := NewTranscript()
	for _, text := range []string{"a", "b", "c", "d"} {
		tr.Append(text, "")
	}

	tests := []struct {
		name  string
		since int
		want  []string
	}{
		{"everything from zero", 0, []string{"a", "b", "c", "d"}},
		{"tail after second", 2, []string{"c", "d"}},
		{"nothing new", 4, nil},
		{"future sequence", 99, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.Since(tt.since)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, line := range got {
				if line.Text != tt.want[i] {
					t.Errorf("line %d: Text = %q, want %q", i, line.Text, tt.want[i])
				}
			}
		})
	}
}

func TestTranscriptClearKeepsSequence(t *testing.T) {
	tr := NewTranscript()
	tr.Append("old", "")
	tr.Append("older", "")

	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", tr.Len())
	}

	line := tr.Append("new", "")
	if line.Seq != 3 {
		t.Errorf("Seq after Clear = %d, want 3", line.Seq)
	}
	if got := tr.Since(2); len(got) != 1 || got[0].Text != "new" {
		t.Errorf("Since(2) = %v, want the new line only", got)
	}
}

func TestTranscriptSnapshotIsolation(t *testing.T) {
	tr := NewTranscript()
	tr.Append("stable", "")

	snap := tr.Lines()
	tr.Append("later", "")
	tr.Clear()

	if len(snap) != 1 || snap[0].Text != "stable" {
		t.Errorf("snapshot changed under mutation: %v", snap)
	}
}

func TestTranscriptConcurrentReaders(t *testing.T) {
	tr := NewTranscript()

	const lines = 200
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < lines; i++ {
			tr.Append("line", "en")
		}
	}()

	// Readers must always observe whole lines and a non-decreasing count.
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := 0
			for i := 0; i < 100; i++ {
				got := tr.Lines()
				if len(got) < prev {
					t.Errorf("line count went backwards: %d -> %d", prev, len(got))
					return
				}
				prev = len(got)
				for _, line := range got {
					if line.Text != "line" || line.Lang != "en" {
						t.Errorf("torn line: %+v", line)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
