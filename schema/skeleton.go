package schema

import (
	"strings"

	"pantrygen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Skeleton builds the smallest value carrying every required property of s:
// arrays are empty, objects recurse, scalars take their zero value, the first
// enum value or the minimum.
func Skeleton(s *jsonschema.Schema) any {
	if s == nil {
		return nil
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	types := typesOf(s)
	if len(types) == 0 {
		if len(s.Properties) > 0 || len(s.Required) > 0 {
			types = []string{"object"}
		} else {
			return nil
		}
	}

	switch types[0] {
	case "object":
		out := make(map[string]any, len(s.Required))
		for _, name := range s.Required {
			out[name] = Skeleton(s.Properties[name])
		}
		return out
	case "array":
		return []any{}
	case "string":
		return ""
	case "integer", "number":
		if s.Minimum != nil {
			return *s.Minimum
		}
		return float64(0)
	case "boolean":
		return false
	}
	return nil
}

// DefaultClarificationQuestion is asked when a clarification carries neither
// questions nor a usable message.
const DefaultClarificationQuestion = "What more can you tell me about this request?"

// ErrorPayload returns a payload with the task's required top-level shape
// reporting an error status.
func ErrorPayload(task TaskSpec, message string) map[string]any {
	out := base(task, pantrygen.StatusError)
	if message == "" {
		message = GenericFailureMessage
	}
	out[task.Repair.MessageField] = message
	return out
}

// ClarificationPayload returns a payload with the task's required top-level
// shape asking the caller the given questions.
func ClarificationPayload(task TaskSpec, questions []string) map[string]any {
	out := base(task, pantrygen.StatusNeedsClarification)
	qs := make([]any, len(questions))
	for i, q := range questions {
		qs[i] = q
	}
	out[task.Repair.QuestionsField] = qs
	if len(questions) > 0 {
		out[task.Repair.MessageField] = questions[0]
	}
	return out
}

func base(task TaskSpec, status pantrygen.Status) map[string]any {
	out, _ := Skeleton(task.Schema).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range task.Repair.Defaults {
		if _, required := out[k]; required {
			out[k] = deepCopy(v)
		}
	}
	out[task.Repair.StatusField] = string(status)
	return out
}

// CompleteShape adds any required top-level property missing from a
// non-success payload, taking values from the task skeleton. Present values
// are kept. Success payloads are returned untouched.
func CompleteShape(task TaskSpec, payload map[string]any) map[string]any {
	status, _ := payload[task.Repair.StatusField].(string)
	st, ok := pantrygen.ParseStatus(status)
	if !ok || st == pantrygen.StatusOK {
		return payload
	}
	for k, v := range base(task, st) {
		if _, present := payload[k]; !present {
			payload[k] = v
		}
	}
	if st == pantrygen.StatusNeedsClarification {
		ensureQuestion(task, payload)
	}
	return payload
}

// ensureQuestion gives a clarification payload at least one question, taken
// from its message when there is one.
func ensureQuestion(task TaskSpec, payload map[string]any) {
	field := task.Repair.QuestionsField
	if task.Schema == nil {
		return
	}
	if _, declared := task.Schema.Properties[field]; !declared && forbidsAdditional(task.Schema) {
		return
	}
	if len(StringList(payload[field])) > 0 {
		return
	}
	q := DefaultClarificationQuestion
	if msg, _ := payload[task.Repair.MessageField].(string); strings.TrimSpace(msg) != "" && msg != GenericFailureMessage {
		q = strings.TrimSpace(msg)
	}
	payload[field] = []any{q}
}
