package pantrygen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil", err: nil, want: FailureNone},
		{name: "rate limited", err: &RateLimitError{Provider: "p", Err: errors.New("429")}, want: FailureRateLimited},
		{name: "wrapped rate limit", err: fmt.Errorf("call: %w", &RateLimitError{Provider: "p"}), want: FailureRateLimited},
		{name: "malformed", err: &MalformedOutputError{Provider: "p", Err: errNoObject}, want: FailureMalformed},
		{name: "invalid", err: &InvalidOutputError{Errors: []ValidationError{{Path: "$", Message: "bad"}}}, want: FailureInvalid},
		{name: "deadline", err: context.DeadlineExceeded, want: FailureOther},
		{name: "anything else", err: errors.New("connection reset"), want: FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

func TestFailureKindString(t *testing.T) {
	assert.Equal(t, "ok", FailureNone.String())
	assert.Equal(t, "rate_limited", FailureRateLimited.String())
	assert.Equal(t, "malformed", FailureMalformed.String())
	assert.Equal(t, "invalid", FailureInvalid.String())
	assert.Equal(t, "other", FailureOther.String())
}

func TestErrorMessages(t *testing.T) {
	inner := errors.New("throttled")
	rl := &RateLimitError{Provider: "bedrock:m", Err: inner}
	assert.Equal(t, "bedrock:m: rate limited: throttled", rl.Error())
	assert.ErrorIs(t, rl, inner)

	ie := &InvalidOutputError{Errors: []ValidationError{
		{Path: "$.days", Message: "expected array"},
		{Path: "$.summary", Message: "required"},
	}}
	assert.Equal(t, "invalid output: 2 violation(s), first: $.days: expected array", ie.Error())
	assert.Equal(t, "invalid output", (&InvalidOutputError{}).Error())

	v := SafetyViolation{Member: "Sam", Constraint: "dairy", Kind: "allergen", Matched: "milk"}
	assert.Equal(t, `allergen "dairy" matched "milk"`, v.String())
}
