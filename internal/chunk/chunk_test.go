package chunk

import (
	"strings"
	"testing"
)

func TestSplit_SingleChunk(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
	}{
		{name: "empty input", text: "", maxChars: 100},
		{name: "whitespace only", text: "  \n\n  ", maxChars: 100},
		{name: "fits in budget", text: "One paragraph.\n\nAnother paragraph.", maxChars: 1000},
		{name: "zero budget disables splitting", text: strings.Repeat("word ", 500), maxChars: 0},
		{name: "negative budget disables splitting", text: strings.Repeat("word ", 500), maxChars: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.maxChars, 2)
			if len(got) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(got))
			}
			if got[0].Text != strings.TrimSpace(tt.text) {
				t.Errorf("chunk text = %q, want trimmed input %q", got[0].Text, strings.TrimSpace(tt.text))
			}
			if got[0].Total != 1 || got[0].Index != 0 {
				t.Errorf("index/total = %d/%d, want 0/1", got[0].Index, got[0].Total)
			}
			if got[0].OverlapLen != 0 {
				t.Errorf("single chunk must have no overlap, got %d", got[0].OverlapLen)
			}
		})
	}
}

func TestSplit_RespectsBudget(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, strings.Repeat("alpha beta gamma ", 5))
	}
	text := strings.Join(paragraphs, "\n\n")

	const maxChars = 300
	chunks := Split(text, maxChars, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > maxChars {
			t.Errorf("chunk %d length %d exceeds budget %d", i, len(c.Text), maxChars)
		}
		if c.Total != len(chunks) {
			t.Errorf("chunk %d Total = %d, want %d", i, c.Total, len(chunks))
		}
	}
}

func TestSplit_OversizedUnitEmittedWhole(t *testing.T) {
	huge := strings.Repeat("x", 500) + "." // one sentence, no split points
	chunks := Split("short one.\n\n"+huge, 100, 0)

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, huge) {
			found = true
		}
	}
	if !found {
		t.Error("oversized unit was not emitted whole")
	}
}

func TestSplit_SentenceFallback(t *testing.T) {
	// One paragraph, far over budget: must fall back to sentence units.
	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, "This is sentence number "+strings.Repeat("n", 10)+".")
	}
	text := strings.Join(sentences, " ")

	chunks := Split(text, 200, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level splitting, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) > 200 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(c.Text))
		}
	}
}

func TestSplit_OverlapContinuity(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 12; i++ {
		paragraphs = append(paragraphs, "paragraph "+string(rune('a'+i))+" "+strings.Repeat("filler ", 10))
	}
	text := strings.Join(paragraphs, "\n\n")

	const k = 2
	chunks := Split(text, 250, k)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		tail := lastUnits(chunks[i].Text, k)
		head := firstUnits(chunks[i+1].Text, k)
		if tail != head {
			t.Errorf("chunk %d tail %q != chunk %d head %q", i, tail, i+1, head)
		}
		if chunks[i+1].OverlapLen == 0 {
			t.Errorf("chunk %d should declare a nonzero overlap", i+1)
		}
		if chunks[i+1].OverlapLen != len(head) {
			t.Errorf("chunk %d OverlapLen = %d, want %d", i+1, chunks[i+1].OverlapLen, len(head))
		}
	}
}

func TestReconstruct_RoundTrip(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, "unit "+string(rune('a'+i))+" "+strings.Repeat("content ", 8))
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := Split(text, 220, 2)
	got := Reconstruct(chunks)
	if got != text {
		t.Errorf("reconstruction mismatch:\n got: %q\nwant: %q", got, text)
	}
}

func lastUnits(text string, k int) string {
	units := strings.Split(text, "\n\n")
	if len(units) > k {
		units = units[len(units)-k:]
	}
	return strings.Join(units, "\n\n")
}

func firstUnits(text string, k int) string {
	units := strings.Split(text, "\n\n")
	if len(units) > k {
		units = units[:k]
	}
	return strings.Join(units, "\n\n")
}
