package mock

import (
	"context"
	"errors"
	"sync"

	"pantrygen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

var ErrScriptEmpty = errors.New("mock: script has no steps")

// Step is one scripted answer: a payload or an error.
type Step struct {
	Payload map[string]any
	Err     error
}

// Reply is shorthand for a Step returning payload.
func Reply(payload map[string]any) Step { return Step{Payload: payload} }

// Fail is shorthand for a Step returning err.
func Fail(err error) Step { return Step{Err: err} }

// Scripted replays steps in order and repeats the last one once the script
// runs out. It records every conversation it receives.
type Scripted struct {
	name string

	mu       sync.Mutex
	steps    []Step
	received [][]pantrygen.Message
}

func NewScripted(name string, steps ...Step) *Scripted {
	return &Scripted{name: name, steps: steps}
}

func (s *Scripted) Name() string { return s.name }

func (s *Scripted) Generate(ctx context.Context, messages []pantrygen.Message, _ *jsonschema.Schema) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received = append(s.received, append([]pantrygen.Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, ErrScriptEmpty
	}

	i := len(s.received) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	return step.Payload, step.Err
}

// Calls returns how many times Generate was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

// Received returns the conversation passed to call i (zero-based).
func (s *Scripted) Received(i int) []pantrygen.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.received) {
		return nil
	}
	return s.received[i]
}
