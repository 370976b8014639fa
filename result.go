package pantrygen

import (
	"encoding/json"
	"strings"
)

// Status is the top-level discriminant of every generated payload.
type Status string

const (
	StatusOK                 Status = "ok"
	StatusNeedsClarification Status = "needs_clarification"
	StatusError              Status = "error"
)

// ParseStatus returns the recognized status for s, if any.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOK:
		return StatusOK, true
	case StatusNeedsClarification:
		return StatusNeedsClarification, true
	case StatusError:
		return StatusError, true
	}
	return "", false
}

// GenerationResult is the only shape the calling layer sees. Payload always
// holds the schema's required top-level shape, whichever variant it is.
type GenerationResult struct {
	Status    Status
	Payload   map[string]any
	Questions []string
	Message   string

	// Dropped lists items removed after generation; Flags lists kept items
	// whose ingredient references did not resolve. Neither is serialized.
	Dropped []DroppedItem
	Flags   []ItemFlag
}

// ItemFlag marks a kept item that referenced unknown inventory identifiers.
type ItemFlag struct {
	Item    string   `json:"item"`
	Unknown []string `json:"unknown"`
	Message string   `json:"message"`
}

func (r GenerationResult) MarshalJSON() ([]byte, error) {
	if r.Payload == nil {
		out := map[string]any{"status": string(r.Status)}
		switch r.Status {
		case StatusNeedsClarification:
			out["questions"] = nonNilStrings(r.Questions)
		case StatusError:
			out["message"] = r.Message
		}
		return json.Marshal(out)
	}
	return json.Marshal(r.Payload)
}

// OK reports whether the result carries a successful payload.
func (r GenerationResult) OK() bool {
	return r.Status == StatusOK
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
