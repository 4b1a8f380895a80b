package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// LLM OUTPUT EXTRACTION UTILITIES
// =============================================================================
//
// Language models wrap structured replies in markdown fences, preamble
// text ("Here is the plan:"), or trailing commentary. ExtractJSON
// recovers the first balanced JSON object so callers can unmarshal it.
// A failure here is what upstream code classifies as SynthesisError.

// ExtractJSON returns the first balanced top-level JSON object found in
// raw model output. Markdown code fences are stripped first.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(raw)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in output")
}

// stripFences removes markdown code fences (``` or ```json) around the
// payload, if present.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}

	var out []string
	inFence := false
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		// Fences present but nothing captured; fall back to the raw text.
		return trimmed
	}
	return strings.Join(out, "\n")
}
