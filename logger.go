package pantrygen

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// AttemptLogger is the interface for per-attempt audit logging.
type AttemptLogger interface {
	LogAttempt(attempt AttemptLog) error
}

// NewAttemptLogFilePath returns a file path based on a cleaned up task and provider name to make logs of specific runs easier to find.
func NewAttemptLogFilePath(task, provider string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.%s.json",
		time.Now().Unix(),
		strings.ToLower(task),
		strings.ReplaceAll(strings.ToLower(provider), ":", "_"),
	)
}

// AttemptLog represents a single generation attempt against one provider.
type AttemptLog struct {
	Attempt   int               `json:"attempt"`
	Provider  string            `json:"provider"`
	Phase     string            `json:"phase"`
	Timestamp time.Time         `json:"timestamp"`
	Duration  time.Duration     `json:"duration_ns"`
	Messages  int               `json:"messages"`
	Outcome   string            `json:"outcome"`
	Errors    []ValidationError `json:"validation_errors,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// FileAttemptLogger accumulates attempts and writes them as one document on Flush.
type FileAttemptLogger struct {
	attempts []AttemptLog
	writer   io.Writer
}

func NewFileAttemptLogger(writer io.Writer) *FileAttemptLogger {
	return &FileAttemptLogger{
		attempts: make([]AttemptLog, 0),
		writer:   writer,
	}
}

// LogAttempt logs an attempt to the buffer (does not flush immediately)
func (l *FileAttemptLogger) LogAttempt(attempt AttemptLog) error {
	l.attempts = append(l.attempts, attempt)
	return nil
}

// Flush flushes all accumulated attempts to the writer
func (l *FileAttemptLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"generation_session": map[string]any{
			"timestamp": time.Now(),
			"attempts":  l.attempts,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal attempt log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write attempt log: %w", err)
	}

	l.attempts = l.attempts[:0]
	return nil
}

// NoOpAttemptLogger discards all log entries
type NoOpAttemptLogger struct{}

func NewNoOpAttemptLogger() *NoOpAttemptLogger {
	return &NoOpAttemptLogger{}
}

func (nop *NoOpAttemptLogger) LogAttempt(attempt AttemptLog) error {
	return nil
}

// StdoutAttemptLogger logs each attempt as a JSON line (for Lambda/CloudWatch)
type StdoutAttemptLogger struct {
	out io.Writer
}

func NewStdoutAttemptLogger() *StdoutAttemptLogger {
	return &StdoutAttemptLogger{out: os.Stdout}
}

func (l *StdoutAttemptLogger) LogAttempt(attempt AttemptLog) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return err
	}
	fmt.Fprintln(l.out, string(data))
	return nil
}
