package llm

import (
	"encoding/json"
	"strings"
)

// Unmarshal decodes a model response into out. Strict decoding of the whole
// payload is the primary path; scanning for an embedded JSON object is kept
// as the recovery strategy for responses wrapped in prose.
func Unmarshal(text string, out any) error {
	trimmed := strings.TrimSpace(text)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	embedded, err := extractObject(trimmed)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(embedded), out)
}

// extractObject returns the first balanced top-level JSON object in text,
// tolerating leading and trailing prose.
func extractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", errNoJSON
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if escaped {
			escaped = false
			continue
		}

		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], nil
				}
			}
		}
	}

	return "", errNoJSON
}
