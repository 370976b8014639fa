package pantrygen

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoObject = errors.New("no JSON object found")

// ParseObject extracts the single JSON object a backend returned, tolerating
// markdown fences and prose around it. Failures are *MalformedOutputError.
func ParseObject(provider, raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	text = stripFence(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, &MalformedOutputError{Provider: provider, Raw: raw, Err: errNoObject}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, &MalformedOutputError{Provider: provider, Raw: raw, Err: err}
	}
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
