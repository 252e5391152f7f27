package llm

import (
	"strings"
)

// ExtractJSONObject returns the first balanced {...} span in s, or "" when
// none exists. Gateway responses often wrap the payload in prose or
// markdown fences, so callers never unmarshal the raw text directly.
func ExtractJSONObject(s string) string {
	return extractSpan(s, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] span in s, or "".
func ExtractJSONArray(s string) string {
	return extractSpan(s, '[', ']')
}

func extractSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
