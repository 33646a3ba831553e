// Package phonetic corrects transcripts against a known course vocabulary
// using Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// Speech recognizers routinely mangle domain terms — lecturer names, algorithm
// names, jargon — into near-homophones. The corrector works in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each vocabulary term. If any code from
//     the input overlaps with any code from a term, that term becomes a
//     phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (case-insensitive) wins, provided its
//     score clears the phonetic threshold. When no phonetic candidate exists,
//     a secondary pass tests pure Jaro-Winkler similarity against all terms at
//     a stricter fuzzy threshold.
//
// Multi-word terms ("Fourier transform") are supported: the corrector slides
// n-gram windows over the transcript and prefers the longest matching window.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85

	// Single tokens shorter than this are never corrected. Stops function
	// words like "the" from being pulled toward short vocabulary terms.
	minTokenLen = 4
)

// Correction records one substitution applied to the transcript.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher matches words against a vocabulary. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the vocabulary term most phonetically similar to word.
//
// word may be a single word or a space-separated phrase. When matched is
// false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	if len(terms) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		termTokens := strings.Fields(termLower)

		termCodes := codesForTokens(termTokens)
		phoneticMatch := codesOverlap(inputCodes, termCodes)
		jwScore := bestJWScore(wordTokens, termTokens, wordLower, termLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{term: term, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{term: term, score: jwScore, phonetic: false}
			}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// CorrectText applies vocabulary correction across an entire transcript.
//
// The text is tokenised on whitespace and n-gram windows (up to the longest
// term's word count) are tested at each position, longest first, so that
// multi-word terms win over partial single-word matches. Trailing punctuation
// on a window is preserved on the corrected output. Canonical-spelling
// replacements that only change letter case are applied but not recorded as
// corrections. Line structure is preserved: each line is corrected on its own.
func (m *Matcher) CorrectText(text string, terms []string) (string, []Correction) {
	if strings.TrimSpace(text) == "" || len(terms) == 0 {
		return text, nil
	}

	lines := strings.Split(text, "\n")
	var all []Correction
	for i, line := range lines {
		corrected, corr := m.correctLine(line, terms)
		lines[i] = corrected
		all = append(all, corr...)
	}
	return strings.Join(lines, "\n"), all
}

func (m *Matcher) correctLine(line string, terms []string) (string, []Correction) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return line, nil
	}

	maxTermWords := maxWordCount(terms)

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := maxTermWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1 && !matched; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			core, trailing := splitTrailingPunct(window)
			if n == 1 && len([]rune(core)) < minTokenLen {
				continue
			}

			term, conf, ok := m.Match(core, terms)
			if !ok {
				continue
			}

			output = append(output, strings.Fields(term+trailing)...)
			if !strings.EqualFold(core, term) {
				corrections = append(corrections, Correction{
					Original:   core,
					Corrected:  term,
					Confidence: conf,
				})
			}
			i += n
			matched = true
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	return strings.Join(output, " "), corrections
}

// splitTrailingPunct separates trailing punctuation from a window so that
// "Dijkstra," matches the term "Dijkstra" and keeps its comma.
func splitTrailingPunct(s string) (core, trailing string) {
	runes := []rune(s)
	end := len(runes)
	for end > 0 && unicode.IsPunct(runes[end-1]) {
		end--
	}
	return string(runes[:end]), string(runes[end:])
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens, excluding empty codes.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the term across three strategies: full strings, space-stripped strings,
// and the best pairwise token score.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}

	return score
}

// maxWordCount returns the maximum number of whitespace-separated words in
// any term. Returns 1 when terms is empty.
func maxWordCount(terms []string) int {
	max := 1
	for _, t := range terms {
		if n := len(strings.Fields(t)); n > max {
			max = n
		}
	}
	return max
}
