// Package chunk splits long transcript text into bounded, overlapping chunks
// for LLM consumption.
//
// Splitting prefers blank-line-delimited paragraphs; when a single paragraph
// alone exceeds the character budget it is re-split on sentence boundaries.
// Adjacent chunks share a configurable number of trailing units so that the
// model sees continuity across chunk boundaries. Splitting is deterministic
// and total: any input string produces at least one chunk and no error.
package chunk

import (
	"regexp"
	"strings"
)

// Chunk is one bounded slice of a larger text.
type Chunk struct {
	// Index is the zero-based position of this chunk in the sequence.
	Index int

	// Total is the number of chunks produced for the whole text.
	Total int

	// Text is the chunk content, including any overlap prefix.
	Text string

	// OverlapLen is the byte length of the leading portion of Text that
	// duplicates the tail of the previous chunk. Zero for the first chunk.
	OverlapLen int
}

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceSplit  = regexp.MustCompile(`(?s)(.*?[.!?])(?:\s+|$)`)
)

// Split breaks text into chunks of at most maxChars characters, seeding each
// chunk after the first with the last overlapUnits units of its predecessor.
//
// A unit is a paragraph, or a sentence when the text is a single oversized
// paragraph. A single unit longer than maxChars is emitted whole; units are
// never cut mid-way. maxChars <= 0 disables splitting entirely.
func Split(text string, maxChars, overlapUnits int) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxChars <= 0 || len(trimmed) <= maxChars {
		return []Chunk{{Index: 0, Total: 1, Text: trimmed}}
	}
	if overlapUnits < 0 {
		overlapUnits = 0
	}

	units := splitUnits(trimmed, maxChars)
	joiner := "\n\n"
	if len(units.sentences) > 0 {
		units.paragraphs = units.sentences
		joiner = " "
	}

	var (
		chunks  []Chunk
		current []string
		carried int // units at the head of current carried over from the previous chunk
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, joiner)
		overlapLen := 0
		if carried > 0 {
			overlapLen = len(strings.Join(current[:carried], joiner))
		}
		chunks = append(chunks, Chunk{Text: text, OverlapLen: overlapLen})

		if overlapUnits > 0 {
			keep := overlapUnits
			if keep > len(current) {
				keep = len(current)
			}
			tail := current[len(current)-keep:]
			current = append([]string(nil), tail...)
			carried = len(current)
		} else {
			current = nil
			carried = 0
		}
	}

	for _, unit := range units.paragraphs {
		candidate := len(strings.Join(current, joiner))
		if candidate > 0 {
			candidate += len(joiner)
		}
		candidate += len(unit)

		if len(current) > 0 && candidate > maxChars {
			// Emitting with only carried-over units would loop forever when a
			// single fresh unit exceeds the budget, so require at least one
			// non-overlap unit before flushing.
			if len(current) > carried {
				flush()
			}
		}
		current = append(current, unit)
	}
	if len(current) > carried {
		flush()
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// Reconstruct concatenates chunks with their overlap prefixes removed,
// yielding the original unit sequence as a single string. It is the inverse
// of [Split] up to whitespace normalisation at unit joins.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		body := c.Text
		if c.OverlapLen > 0 && c.OverlapLen <= len(body) {
			body = strings.TrimLeft(body[c.OverlapLen:], " \n")
		}
		if body == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(body)
	}
	return b.String()
}

type unitSet struct {
	paragraphs []string
	sentences  []string
}

// splitUnits produces the unit list for text. When paragraph splitting yields
// a single unit that still exceeds maxChars, it falls back to sentences.
func splitUnits(text string, maxChars int) unitSet {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) == 1 && len(paragraphs[0]) > maxChars {
		return unitSet{sentences: splitSentences(paragraphs[0])}
	}
	return unitSet{paragraphs: paragraphs}
}

// splitSentences splits on sentence-ending punctuation, keeping the
// terminator with its sentence. Trailing text without a terminator becomes
// its own unit.
func splitSentences(text string) []string {
	var out []string
	rest := text
	for {
		loc := sentenceSplit.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		s := strings.TrimSpace(rest[loc[2]:loc[3]])
		if s != "" {
			out = append(out, s)
		}
		rest = rest[loc[1]:]
		if rest == "" {
			break
		}
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		out = append(out, tail)
	}
	if len(out) == 0 {
		out = []string{strings.TrimSpace(text)}
	}
	return out
}
