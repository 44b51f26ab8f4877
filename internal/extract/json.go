package extract

import (
	"encoding/json"
	"strings"
)

// StripToJSON pulls a JSON object out of a model response that may wrap it
// in markdown code fences or surrounding prose. Returns the raw JSON bytes
// or a ParseError when no parseable object is found.
func StripToJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)

	// Strip a markdown code fence if present.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Fast path: the whole thing is JSON.
	if json.Valid([]byte(s)) && (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) {
		return json.RawMessage(s), nil
	}

	// Otherwise scan for the first balanced top-level object.
	start := strings.Index(s, "{")
	if start == -1 {
		return nil, &ParseError{Service: "llm", Detail: "no JSON object in response"}
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
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate), nil
				}
				return nil, &ParseError{Service: "llm", Detail: "unbalanced or invalid JSON object in response"}
			}
		}
	}

	return nil, &ParseError{Service: "llm", Detail: "truncated JSON object in response"}
}
