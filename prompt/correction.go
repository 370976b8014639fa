package prompt

import (
	"encoding/json"
	"fmt"

	"pantrygen"
)

type correction struct {
	Error      string   `json:"error"`
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
	Omitted    int      `json:"omitted_violations,omitempty"`
	Hint       string   `json:"hint,omitempty"`
}

// InvalidOutput returns the follow-up message sent after a response failed
// schema validation. Violations are dropped from the end until the message
// fits in maxChars.
func InvalidOutput(errs []pantrygen.ValidationError, hint string, maxChars int) pantrygen.Message {
	violations := make([]string, len(errs))
	for i, e := range errs {
		violations[i] = e.String()
	}
	return encode(correction{
		Error:      "schema_validation_failed",
		Reason:     fmt.Sprintf("your previous response had %d schema violation(s); return the complete corrected JSON object", len(errs)),
		Violations: violations,
		Hint:       hint,
	}, maxChars)
}

// MalformedOutput returns the follow-up message sent after a response could
// not be parsed as a JSON object.
func MalformedOutput(cause error, hint string, maxChars int) pantrygen.Message {
	reason := "your previous response was not a single JSON object"
	if cause != nil {
		reason = fmt.Sprintf("%s: %v", reason, cause)
	}
	return encode(correction{
		Error:  "invalid_final_json",
		Reason: reason,
		Hint:   hint,
	}, maxChars)
}

func encode(c correction, maxChars int) pantrygen.Message {
	b, _ := json.Marshal(c)
	for maxChars > 0 && len(b) > maxChars && len(c.Violations) > 0 {
		c.Violations = c.Violations[:len(c.Violations)-1]
		c.Omitted++
		b, _ = json.Marshal(c)
	}
	if maxChars > 0 && len(b) > maxChars {
		c.Reason = truncate(c.Reason, 200)
		c.Hint = truncate(c.Hint, 200)
		b, _ = json.Marshal(c)
	}
	return pantrygen.Message{Role: pantrygen.RoleUser, Content: string(b)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
