package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes markdown code-fence wrappers the model sometimes
// adds despite instructions (```json ... ``` or plain ``` ... ```).
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)

	if !strings.HasPrefix(s, "```") {
		// An unfenced reply may still contain backticks inside JSON
		// string values; leave it untouched.
		return s
	}

	idx := strings.Index(s, "\n")
	if idx == -1 {
		return s
	}
	s = strings.TrimSpace(s[idx+1:])

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

// ExtractObject returns the greedy first-'{' to last-'}' substring of
// the input, the same recovery the extraction contract tolerates. An
// input without braces is an error, never silently defaulted.
func ExtractObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return raw[start : end+1], nil
}

// DecodeObject recovers and unmarshals a JSON object from free-text
// model output: fences stripped, braces located, then a strict parse.
// Decode failures propagate to the caller.
func DecodeObject(raw string, v any) error {
	obj, err := ExtractObject(StripFences(raw))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
