package pantrygen

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAttemptLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFileAttemptLogger(&buf)

	require.NoError(t, logger.LogAttempt(AttemptLog{Attempt: 1, Provider: "ollama:llama3.2", Phase: "primary", Outcome: "malformed"}))
	require.NoError(t, logger.LogAttempt(AttemptLog{Attempt: 2, Provider: "ollama:llama3.2", Phase: "primary", Outcome: "ok"}))
	assert.Zero(t, buf.Len(), "attempts are buffered until Flush")

	require.NoError(t, logger.Flush())

	var doc struct {
		Session struct {
			Attempts []AttemptLog `json:"attempts"`
		} `json:"generation_session"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Session.Attempts, 2)
	assert.Equal(t, "ok", doc.Session.Attempts[1].Outcome)
}

func TestFileAttemptLoggerNilWriter(t *testing.T) {
	logger := NewFileAttemptLogger(nil)
	require.NoError(t, logger.LogAttempt(AttemptLog{Attempt: 1}))
	assert.NoError(t, logger.Flush())
}

func TestStdoutAttemptLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := &StdoutAttemptLogger{out: &buf}

	require.NoError(t, logger.LogAttempt(AttemptLog{Attempt: 1, Provider: "mock", Duration: time.Second, Error: "boom"}))

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &got))
	assert.Equal(t, "mock", got["provider"])
	assert.Equal(t, "boom", got["error"])
	assert.Equal(t, float64(time.Second), got["duration_ns"])
}

func TestNewAttemptLogFilePath(t *testing.T) {
	path := NewAttemptLogFilePath("Meal_Plan", "Bedrock:Claude")
	assert.True(t, strings.HasPrefix(path, "./logs/"))
	assert.True(t, strings.HasSuffix(path, ".meal_plan.bedrock_claude.json"), path)
}
