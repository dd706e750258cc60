// Package llmx holds small helpers for working with raw model output.
package llmx

import "strings"

// ExtractObject returns the first balanced JSON object literal in text.
// The scan is string-aware so braces inside string values don't confuse
// the depth count. Returns ok=false when no complete object is present.
func ExtractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// Truncate caps s at max bytes, appending marker when anything was cut.
func Truncate(s string, max int, marker string) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + marker
}
