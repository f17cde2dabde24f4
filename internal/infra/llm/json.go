package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON returns the first valid JSON object embedded in text.
// Completions wrap their JSON in prose or code fences, so the body can
// never be assumed to be pure JSON.
func ExtractJSON(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		end, balanced := matchObject(text, start)
		if !balanced {
			return nil, false
		}
		candidate := text[start:end]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
		// Balanced but not valid JSON; try the next opening brace, which
		// may start a nested or later object.
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			return nil, false
		}
		start += 1 + next
	}
	return nil, false
}

// matchObject scans from the opening brace at start and returns the index
// one past its matching close. String literals and escapes are honored.
func matchObject(text string, start int) (int, bool) {
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
				return i + 1, true
			}
		}
	}
	return 0, false
}
