// Package orchestrator runs the generation pipeline: the precondition gate,
// context assembly, the retry/fallback controller and post-generation checks.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"pantrygen"
	"pantrygen/prompt"
	"pantrygen/schema"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// State is a controller state. Done and Failed are terminal.
type State string

const (
	StateAttempting State = "attempting"
	StateRetry      State = "retry"
	StateFallback   State = "fallback"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

const (
	PhasePrimary  = "primary"
	PhaseFallback = "fallback"
)

// RateLimitedMessage is the error message returned when every configured
// backend throttled the request.
const RateLimitedMessage = "The generation service is busy. Please try again shortly."

// Outcome is what the controller returns for one task. Result always carries
// a payload with the task's required top-level shape.
type Outcome struct {
	Result    pantrygen.GenerationResult
	State     State
	Attempts  int
	Provider  string
	LastError error
}

// Controller drives bounded corrective retries against the primary backend
// and at most one zero-retry attempt against the fallback backend.
type Controller struct {
	primary  pantrygen.Generator
	fallback pantrygen.Generator
	cfg      pantrygen.PipelineConfig
	logger   pantrygen.AttemptLogger
	tracer   trace.Tracer
	metrics  metrics
}

// NewController wires a controller. fallback, logger, tracer and meter may be
// nil; telemetry then goes to the global OpenTelemetry providers.
func NewController(primary, fallback pantrygen.Generator, cfg pantrygen.PipelineConfig, logger pantrygen.AttemptLogger, tracer trace.Tracer, meter metric.Meter) *Controller {
	if logger == nil {
		logger = pantrygen.NewNoOpAttemptLogger()
	}
	if tracer == nil {
		tracer = otel.Tracer(pantrygen.TracerNameController)
	}
	if meter == nil {
		meter = otel.Meter(pantrygen.TracerNameController)
	}
	return &Controller{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger,
		tracer:   tracer,
		metrics:  newMetrics(meter),
	}
}

// run is the mutable state of one Generate call.
type run struct {
	task     schema.TaskSpec
	base     []pantrygen.Message
	convo    []pantrygen.Message
	gen      pantrygen.Generator
	phase    string
	retries  int
	attempts int
	lastKind pantrygen.FailureKind
	lastErr  error
	result   pantrygen.GenerationResult
}

// Generate runs the state machine to a terminal state.
func (c *Controller) Generate(ctx context.Context, task schema.TaskSpec, messages []pantrygen.Message) Outcome {
	ctx, span := c.tracer.Start(ctx, "Controller.Generate", trace.WithAttributes(
		attribute.String("task", task.Name),
		attribute.Int("max_retries", c.cfg.MaxRetries),
	))
	defer span.End()

	r := &run{
		task:  task,
		base:  messages,
		convo: append([]pantrygen.Message(nil), messages...),
		gen:   c.primary,
		phase: PhasePrimary,
	}

	state := StateAttempting
	if c.primary == nil {
		r.lastErr = pantrygen.ErrNoProvider
		state = StateFailed
	}

	for {
		switch state {
		case StateAttempting:
			state = c.attempt(ctx, r)

		case StateRetry:
			r.retries++
			slog.Info("CONTROLLER: Retrying", "task", task.Name, "provider", r.gen.Name(), "retry", r.retries)
			state = StateAttempting

		case StateFallback:
			if !c.canFallback() {
				state = StateFailed
				continue
			}
			slog.Warn("CONTROLLER: Switching to fallback provider",
				"task", task.Name,
				"from", c.primary.Name(),
				"to", c.fallback.Name(),
				"reason", r.lastKind.String(),
			)
			c.metrics.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", r.lastKind.String())))
			span.AddEvent("fallback", trace.WithAttributes(attribute.String("provider", c.fallback.Name())))
			r.gen = c.fallback
			r.phase = PhaseFallback
			r.convo = append([]pantrygen.Message(nil), r.base...)
			state = StateAttempting

		case StateDone:
			span.SetAttributes(
				attribute.String("status", string(r.result.Status)),
				attribute.Int("attempts", r.attempts),
			)
			slog.Info("CONTROLLER: Generation succeeded",
				"task", task.Name,
				"provider", r.gen.Name(),
				"status", r.result.Status,
				"attempts", r.attempts,
			)
			return Outcome{Result: r.result, State: StateDone, Attempts: r.attempts, Provider: r.gen.Name(), LastError: r.lastErr}

		case StateFailed:
			span.SetStatus(codes.Error, "generation failed")
			if r.lastErr != nil {
				span.RecordError(r.lastErr)
			}
			return c.fail(r)
		}
	}
}

func (c *Controller) canFallback() bool {
	return c.fallback != nil && c.fallback.Name() != c.primary.Name()
}

// attempt performs one backend call and decides the next state.
func (c *Controller) attempt(ctx context.Context, r *run) State {
	if err := ctx.Err(); err != nil {
		r.lastErr = err
		r.lastKind = pantrygen.FailureOther
		slog.Warn("CONTROLLER: Request cancelled", "task", r.task.Name, "error", err)
		return StateFailed
	}

	r.attempts++
	ctx, span := c.tracer.Start(ctx, "Controller.Attempt", trace.WithAttributes(
		attribute.String("provider", r.gen.Name()),
		attribute.String("phase", r.phase),
		attribute.Int("attempt", r.attempts),
		attribute.Int("messages_count", len(r.convo)),
	))
	defer span.End()

	entry := pantrygen.AttemptLog{
		Attempt:   r.attempts,
		Provider:  r.gen.Name(),
		Phase:     r.phase,
		Timestamp: time.Now(),
		Messages:  len(r.convo),
	}

	start := time.Now()
	raw, err := r.gen.Generate(ctx, r.convo, r.task.Schema)
	entry.Duration = time.Since(start)

	kind := pantrygen.ClassifyFailure(err)
	var verrs []pantrygen.ValidationError
	if err == nil {
		payload, status := c.repair(r.task, raw)
		verrs = schema.Validator{
			MaxErrors:    c.cfg.MaxValidationErrors,
			SkipMinItems: status != pantrygen.StatusOK,
		}.Validate(r.task.Schema, payload)

		if len(verrs) == 0 {
			r.result = resultFrom(r.task, payload)
			r.lastErr = nil
			r.lastKind = pantrygen.FailureNone
			c.record(ctx, r, &entry, kind, nil)
			return StateDone
		}
		kind = pantrygen.FailureInvalid
	}

	r.lastKind = kind
	r.lastErr = err
	if kind == pantrygen.FailureInvalid {
		r.lastErr = &pantrygen.InvalidOutputError{Errors: verrs}
	}
	entry.Errors = verrs
	c.record(ctx, r, &entry, kind, r.lastErr)
	span.SetStatus(codes.Error, kind.String())

	slog.Warn("CONTROLLER: Attempt failed",
		"task", r.task.Name,
		"provider", r.gen.Name(),
		"phase", r.phase,
		"attempt", r.attempts,
		"outcome", kind.String(),
		"validation_errors", len(verrs),
		"error", r.lastErr,
	)

	switch {
	case r.phase == PhaseFallback:
		return StateFailed
	case kind == pantrygen.FailureRateLimited:
		return StateFallback
	case r.retries >= c.cfg.MaxRetries:
		return StateFallback
	}

	hint := r.task.Repair.CorrectionHint
	switch kind {
	case pantrygen.FailureInvalid:
		r.convo = append(r.convo, prompt.InvalidOutput(verrs, hint, c.cfg.MaxCorrectionChars))
	case pantrygen.FailureMalformed:
		r.convo = append(r.convo, prompt.MalformedOutput(err, hint, c.cfg.MaxCorrectionChars))
	}
	return StateRetry
}

// repair applies the structural fix-ups and, for non-success payloads, fills
// in the rest of the required top-level shape.
func (c *Controller) repair(task schema.TaskSpec, raw map[string]any) (map[string]any, pantrygen.Status) {
	payload := schema.NewRepairer(task).Repair(raw, task.Schema)
	if payload == nil {
		payload = map[string]any{}
	}
	statusText, _ := payload[task.Repair.StatusField].(string)
	status, ok := pantrygen.ParseStatus(statusText)
	if !ok {
		return payload, pantrygen.StatusOK
	}
	if status != pantrygen.StatusOK {
		payload = schema.CompleteShape(task, payload)
	}
	return payload, status
}

func (c *Controller) record(ctx context.Context, r *run, entry *pantrygen.AttemptLog, kind pantrygen.FailureKind, err error) {
	entry.Outcome = kind.String()
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := c.logger.LogAttempt(*entry); lerr != nil {
		slog.Error("CONTROLLER: Failed to log attempt", "error", lerr)
	}
	c.metrics.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", r.gen.Name()),
		attribute.String("phase", r.phase),
		attribute.String("outcome", kind.String()),
	))
}

// fail synthesizes an error result carrying the task's required shape.
func (c *Controller) fail(r *run) Outcome {
	msg := schema.GenericFailureMessage
	if r.lastKind == pantrygen.FailureRateLimited {
		msg = RateLimitedMessage
	}
	slog.Error("CONTROLLER: Generation failed",
		"task", r.task.Name,
		"attempts", r.attempts,
		"last_outcome", r.lastKind.String(),
		"error", r.lastErr,
	)

	provider := ""
	if r.gen != nil {
		provider = r.gen.Name()
	}
	return Outcome{
		Result: pantrygen.GenerationResult{
			Status:  pantrygen.StatusError,
			Payload: schema.ErrorPayload(r.task, msg),
			Message: msg,
		},
		State:     StateFailed,
		Attempts:  r.attempts,
		Provider:  provider,
		LastError: r.lastErr,
	}
}

// resultFrom reads the discriminant, questions and message out of a valid payload.
func resultFrom(task schema.TaskSpec, payload map[string]any) pantrygen.GenerationResult {
	statusText, _ := payload[task.Repair.StatusField].(string)
	status, ok := pantrygen.ParseStatus(statusText)
	if !ok {
		status = pantrygen.StatusOK
	}
	msg, _ := payload[task.Repair.MessageField].(string)
	return pantrygen.GenerationResult{
		Status:    status,
		Payload:   payload,
		Questions: schema.StringList(payload[task.Repair.QuestionsField]),
		Message:   strings.TrimSpace(msg),
	}
}
