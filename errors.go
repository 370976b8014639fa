package pantrygen

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrNoProvider  = errors.New("no generation provider configured")
)

// RateLimitError signals that a backend throttled the request. It triggers the
// fallback provider instead of a corrective retry.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// MalformedOutputError signals that a backend answered with something that
// could not be parsed into a JSON object.
type MalformedOutputError struct {
	Provider string
	Raw      string
	Err      error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: malformed output: %v", e.Provider, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// InvalidOutputError carries the schema violations of a parsed result that
// still failed validation after repair.
type InvalidOutputError struct {
	Errors []ValidationError
}

func (e *InvalidOutputError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid output"
	}
	return fmt.Sprintf("invalid output: %d violation(s), first: %s", len(e.Errors), e.Errors[0])
}

// PreconditionError is returned by the precondition gate when safety-critical
// profile data is missing. It is never retried.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

// SafetyViolation describes why a generated item was removed from a result.
type SafetyViolation struct {
	Member     string `json:"member,omitempty"`
	Constraint string `json:"constraint"`
	Kind       string `json:"kind"` // allergen | dietary_restriction
	Matched    string `json:"matched"`
}

func (v SafetyViolation) String() string {
	return fmt.Sprintf("%s %q matched %q", v.Kind, v.Constraint, v.Matched)
}

// DroppedItem is an item removed from a result after generation.
type DroppedItem struct {
	Name       string            `json:"name"`
	Reason     string            `json:"reason"`
	Violations []SafetyViolation `json:"violations,omitempty"`
	Unknown    []string          `json:"unknown_ingredients,omitempty"`
}

// FailureKind is the controller's view of a failed attempt.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureRateLimited
	FailureMalformed
	FailureInvalid
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "ok"
	case FailureRateLimited:
		return "rate_limited"
	case FailureMalformed:
		return "malformed"
	case FailureInvalid:
		return "invalid"
	default:
		return "other"
	}
}

// ClassifyFailure maps a Generator error onto the failure taxonomy.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return FailureRateLimited
	}
	var mo *MalformedOutputError
	if errors.As(err, &mo) {
		return FailureMalformed
	}
	var ie *InvalidOutputError
	if errors.As(err, &ie) {
		return FailureInvalid
	}
	return FailureOther
}
