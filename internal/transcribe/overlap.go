package transcribe

import (
	"strings"
	"unicode"
)

const (
	// overlapWindowWords bounds the boundary comparison to the last/first N
	// words of the adjoining texts.
	overlapWindowWords = 20

	// minOverlapRun is the smallest word run treated as a real duplicate.
	// Shorter matches are too likely to be coincidental ("and the", "so").
	minOverlapRun = 3
)

// reconcileOverlap strips from next the longest word run that duplicates the
// tail of prev. Both texts are compared over a bounded window with
// case-insensitive, punctuation-insensitive word equality; the stripped words
// come from next's original form, so prev's rendering of the shared span
// wins. When no run of at least minOverlapRun words matches, next is
// returned unchanged.
func reconcileOverlap(prev, next string) string {
	prevWords := strings.Fields(prev)
	nextWords := strings.Fields(next)
	if len(prevWords) == 0 || len(nextWords) == 0 {
		return next
	}

	tailLen := min(overlapWindowWords, len(prevWords))
	headLen := min(overlapWindowWords, len(nextWords))

	tail := make([]string, tailLen)
	for i := 0; i < tailLen; i++ {
		tail[i] = normalizeWord(prevWords[len(prevWords)-tailLen+i])
	}
	head := make([]string, headLen)
	for i := 0; i < headLen; i++ {
		head[i] = normalizeWord(nextWords[i])
	}

	// Longest run first: does the last n words of prev equal the first n
	// words of next?
	for n := min(tailLen, headLen); n >= minOverlapRun; n-- {
		if wordsEqual(tail[tailLen-n:], head[:n]) {
			return strings.TrimSpace(strings.Join(nextWords[n:], " "))
		}
	}
	return next
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeWord lowercases and strips non-letter, non-digit runes so that
// "cat," and "Cat" compare equal at a segment boundary.
func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
