package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-career-coach/internal/domain"
)

var errNoJSONObject = errors.New("no JSON object in response")

// ExtractJSONObject returns the first balanced top-level {...} in text.
// Markdown fences and surrounding commentary are ignored; braces inside strings do not count.
func ExtractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errNoJSONObject
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", errNoJSONObject)
}

// DecodeJSON extracts the first JSON object from text and decodes it into out.
// Unknown fields are tolerated; wrong types are not. Every failure wraps domain.ErrParseFailure.
func DecodeJSON(text string, out any) error {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrParseFailure, err)
	}
	return nil
}
