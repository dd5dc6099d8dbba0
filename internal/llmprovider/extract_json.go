package llmprovider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONArray tolerantly parses a JSON array out of raw model output.
// Grounded on original_source/agentcore/memory's extract_json_array helper:
// models wrap arrays in markdown code fences or add a sentence of prose
// before/after the array, so this strips fences and takes the outermost
// '[' ... ']' span before unmarshaling, rather than requiring the whole
// response to be valid JSON.
func ExtractJSONArray(raw []byte) ([]json.RawMessage, error) {
	text := strings.TrimSpace(string(raw))
	text = stripCodeFence(text)

	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("llmprovider: no JSON array found in model output")
	}
	text = text[start : end+1]

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("llmprovider: invalid JSON array: %w", err)
	}
	return items, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 && nl < 16 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
