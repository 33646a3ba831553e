package summarize

import (
	"encoding/json"
	"strings"
)

// parseGuide extracts guideData from an LLM completion. Models wrap JSON in
// prose or code fences often enough that a strict unmarshal would discard
// usable output, so extraction is layered: the raw text first, then the body
// of a fenced code block, then the first balanced JSON object found anywhere
// in the text. Returns ok=false only when every layer fails.
func parseGuide(content string) (guideData, bool) {
	for _, candidate := range jsonCandidates(content) {
		var g guideData
		if err := json.Unmarshal([]byte(candidate), &g); err == nil {
			for _, c := range g.categories() {
				if *c == nil {
					*c = []string{}
				}
			}
			return g, true
		}
	}
	return guideData{}, false
}

// jsonCandidates returns candidate JSON strings in decreasing order of
// confidence. Candidates may overlap; the caller tries them in order.
func jsonCandidates(content string) []string {
	var out []string

	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") {
		out = append(out, trimmed)
	}

	if fenced, ok := fencedBlock(trimmed); ok {
		out = append(out, fenced)
	}

	if obj, ok := balancedObject(trimmed); ok {
		out = append(out, obj)
	}

	return out
}

// fencedBlock returns the body of the first ``` fence in s, tolerating an
// optional language tag on the opening line.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, "```")
	if start < 0 {
		return "", false
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// balancedObject returns the first brace-balanced object in s, tracking
// string literals and escapes so braces inside values do not miscount.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
