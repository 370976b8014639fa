package pantrygen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   Status
		wantOK bool
	}{
		{in: "ok", want: StatusOK, wantOK: true},
		{in: " OK ", want: StatusOK, wantOK: true},
		{in: "NEEDS_CLARIFICATION", want: StatusNeedsClarification, wantOK: true},
		{in: "error", want: StatusError, wantOK: true},
		{in: "success", wantOK: false},
		{in: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerationResultMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		res  GenerationResult
		want string
	}{
		{
			name: "payload is the wire form",
			res: GenerationResult{
				Status:  StatusOK,
				Payload: map[string]any{"status": "ok", "recipes": []any{}},
				Dropped: []DroppedItem{{Name: "x", Reason: "safety"}},
			},
			want: `{"recipes":[],"status":"ok"}`,
		},
		{
			name: "clarification without payload",
			res:  GenerationResult{Status: StatusNeedsClarification},
			want: `{"questions":[],"status":"needs_clarification"}`,
		},
		{
			name: "error without payload",
			res:  GenerationResult{Status: StatusError, Message: "try again"},
			want: `{"message":"try again","status":"error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.res)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}
