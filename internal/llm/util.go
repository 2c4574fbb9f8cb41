// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// CleanJSONBlock removes markdown code block wrappers and conversational
// preamble or trailing text around a JSON object or array.
// LLMs often wrap JSON in ```json ... ``` blocks even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a language identifier on the first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if text == "" {
		return text
	}

	// Take the first balanced candidate that parses; bracketed prose in a
	// preamble such as "[the FAQ]" is skipped.
	first := ""
	for start := 0; start < len(text); {
		idx := strings.IndexAny(text[start:], "{[")
		if idx < 0 {
			break
		}
		candidate := extractJSON(text[start+idx:])
		if candidate != "" {
			if json.Valid([]byte(candidate)) {
				return candidate
			}
			if first == "" {
				first = candidate
			}
		}
		start += idx + 1
	}
	if first != "" {
		return first
	}
	return text
}

// extractJSON returns the balanced JSON value at the start of s, ignoring
// brackets inside strings, or "" when s does not start with { or [ or is
// unbalanced.
func extractJSON(s string) string {
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// DecodeJSON cleans a model response and decodes it into a generic value.
// Failures are returned as *types.DecodeError.
func DecodeJSON(text string) (any, error) {
	cleaned := CleanJSONBlock(text)
	if cleaned == "" {
		return nil, &types.DecodeError{Message: "empty response"}
	}
	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, &types.DecodeError{Message: "response is not valid JSON", Cause: err}
	}
	return v, nil
}
