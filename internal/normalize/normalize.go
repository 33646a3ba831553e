// Package normalize cleans raw speech-to-text output before it is shown to a
// reader or fed to a generation model.
//
// Two independent passes are provided. [Clean] repairs mechanical artefacts —
// repeated lines, word stutter, runs of blank lines — while preserving all
// content. [Prefilter] is more aggressive: it drops conversational filler and
// near-duplicate sentences entirely and is intended only for text bound for
// an LLM prompt. Both passes are idempotent.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultMaxRepeatLines is how many literal repeats of a short line are
	// kept before the remainder is collapsed into a summary marker.
	DefaultMaxRepeatLines = 3

	// shortLineWords bounds which lines participate in repeated-line
	// collapsing. Long lines repeat legitimately far less often.
	shortLineWords = 10

	// stutterThreshold is the run length at which an intra-line repeated word
	// is considered transcription stutter.
	stutterThreshold = 4

	// stutterKeep is how many repetitions survive stutter collapsing.
	stutterKeep = 3

	// minSentenceLen is the length below which a digit-less sentence is
	// assumed non-substantive by Prefilter.
	minSentenceLen = 25
)

// fillerPhrases is the blocklist of conversational filler dropped by
// Prefilter. Matching is case-insensitive substring.
var fillerPhrases = []string{
	"i'm here",
	"can you hear",
	"hello",
	"good luck",
	"test test",
	"mic check",
	"background noise",
}

var (
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	nonWordChars  = regexp.MustCompile(`\W+`)
	repeatMarker  = regexp.MustCompile(`^\[repeated \d+ more times: '.*'\]$`)
	sentenceBreak = regexp.MustCompile(`(?:[.!?])\s+|\n+`)
)

// Clean collapses mechanical repetition artefacts in text. It keeps at most
// DefaultMaxRepeatLines literal copies of a short repeated line and replaces
// the rest with a single "[repeated K more times: '...']" marker, caps
// word stutter at three repetitions, and squeezes runs of blank lines down to
// one. Clean(Clean(s)) == Clean(s) for all s.
func Clean(text string) string {
	return CleanWithLimit(text, DefaultMaxRepeatLines)
}

// CleanWithLimit is [Clean] with an explicit repeated-line limit.
func CleanWithLimit(text string, maxRepeatLines int) string {
	if text == "" {
		return text
	}
	if maxRepeatLines <= 0 {
		maxRepeatLines = DefaultMaxRepeatLines
	}

	lines := strings.Split(text, "\n")
	var out []string

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		// Count the run of identical lines starting here.
		run := 1
		for i+run < len(lines) && strings.TrimSpace(lines[i+run]) == trimmed {
			run++
		}

		collapsible := trimmed != "" &&
			len(strings.Fields(trimmed)) <= shortLineWords &&
			!repeatMarker.MatchString(trimmed)

		if collapsible && run > maxRepeatLines {
			for j := 0; j < maxRepeatLines; j++ {
				out = append(out, collapseStutter(line))
			}
			snippet := trimmed
			if r := []rune(snippet); len(r) > 40 {
				snippet = string(r[:40])
			}
			out = append(out, fmt.Sprintf("[repeated %d more times: '%s']", run-maxRepeatLines, snippet))
			i += run
			continue
		}

		for j := 0; j < run; j++ {
			out = append(out, collapseStutter(lines[i+j]))
		}
		i += run
	}

	result := strings.Join(out, "\n")
	result = blankRuns.ReplaceAllString(result, "\n\n")
	return result
}

// collapseStutter caps runs of the same word within a line. A word repeated
// stutterThreshold or more times in a row is reduced to stutterKeep copies.
// Comparison is case-insensitive; the first-seen spelling is kept.
func collapseStutter(line string) string {
	words := strings.Fields(line)
	if len(words) < stutterThreshold {
		return line
	}

	var out []string
	for i := 0; i < len(words); {
		run := 1
		for i+run < len(words) && strings.EqualFold(words[i+run], words[i]) {
			run++
		}
		keep := run
		if run >= stutterThreshold {
			keep = stutterKeep
		}
		for j := 0; j < keep; j++ {
			out = append(out, words[i])
		}
		i += run
	}
	return strings.Join(out, " ")
}

// Prefilter drops sentences that add no value to a generation prompt:
// greetings and mic-check filler, very short digit-less fragments, and
// sentences whose normalised fingerprint was already seen. First occurrences
// are kept in order. When everything would be dropped the input is returned
// unchanged — an empty prompt is worse than a noisy one.
func Prefilter(text string) string {
	if text == "" {
		return text
	}

	sentences := splitSentences(text)
	seen := make(map[string]struct{}, len(sentences))
	var kept []string

	for _, sentence := range sentences {
		stripped := strings.TrimSpace(sentence)
		if stripped == "" {
			continue
		}

		lowered := strings.ToLower(stripped)
		if containsFiller(lowered) {
			continue
		}
		if len(stripped) < minSentenceLen && !containsDigit(stripped) {
			continue
		}

		fingerprint := nonWordChars.ReplaceAllString(lowered, "")
		if _, dup := seen[fingerprint]; dup {
			continue
		}
		seen[fingerprint] = struct{}{}
		kept = append(kept, stripped)
	}

	if len(kept) == 0 {
		return text
	}
	return strings.Join(kept, "\n")
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, and on newlines, keeping terminators with their sentences.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		// Keep punctuation (everything up to the whitespace) with the sentence.
		end := loc[0]
		if end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
			end++
		}
		if end > last {
			out = append(out, text[last:end])
		}
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func containsFiller(lowered string) bool {
	for _, phrase := range fillerPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
