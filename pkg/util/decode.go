package util

import (
	"encoding/json"
	"strings"
)

// DecodeBestEffort tolerantly decodes model text into T.
//
// It tries a strict parse of the trimmed text (markdown code fences removed),
// then the substring between the first '{' and the last '}', and finally
// returns fallback. The bool reports whether decoded data was used.
func DecodeBestEffort[T any](text string, fallback T) (T, bool) {
	cleaned := stripFences(text)

	var out T
	if cleaned == "null" {
		return fallback, false
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out, true
	}

	if block := ExtractObject(cleaned); block != "" {
		var extracted T
		if err := json.Unmarshal([]byte(block), &extracted); err == nil {
			return extracted, true
		}
	}

	return fallback, false
}

// ExtractObject returns text from the first '{' to the last '}' inclusive,
// or "" when there is no such span.
func ExtractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
