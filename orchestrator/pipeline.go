package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pantrygen"
	"pantrygen/prompt"
	"pantrygen/rules"
	"pantrygen/safety"
	"pantrygen/schema"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ReasonUnknownIngredient marks items dropped for referencing ingredients
// that are not in the caller's inventory.
const ReasonUnknownIngredient = "unknown_ingredient"

// Request is one generation request as the calling layer hands it over.
type Request struct {
	Task      string                    `json:"task" validate:"required"`
	Profile   pantrygen.SafetyProfile   `json:"profile"`
	Inventory []pantrygen.InventoryItem `json:"inventory"`
	History   []pantrygen.HistoryEntry  `json:"history"`

	// Now anchors the history windows. Zero means the current time.
	Now        time.Time `json:"now"`
	CurrentDay int       `json:"current_day" validate:"gte=0"`
	Days       int       `json:"days" validate:"gte=0,lte=31"`

	GuestCount   int `json:"guest_count" validate:"gte=0"`
	BaseServings int `json:"base_servings" validate:"gte=0"`

	OutputLanguages []string       `json:"output_languages" validate:"omitempty,dive,required"`
	Extensions      map[string]any `json:"extensions"`
}

// Pipeline is one configured request path. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	registry   *schema.Registry
	controller *Controller
	cfg        pantrygen.PipelineConfig
	alerts     pantrygen.AlertSink
	tracer     trace.Tracer
	metrics    metrics
}

// NewPipeline wires a pipeline. alerts may be nil.
func NewPipeline(registry *schema.Registry, controller *Controller, cfg pantrygen.PipelineConfig, alerts pantrygen.AlertSink, tracer trace.Tracer, meter metric.Meter) *Pipeline {
	if tracer == nil {
		tracer = otel.Tracer(pantrygen.TracerNamePipeline)
	}
	if meter == nil {
		meter = otel.Meter(pantrygen.TracerNamePipeline)
	}
	return &Pipeline{
		registry:   registry,
		controller: controller,
		cfg:        cfg,
		alerts:     alerts,
		tracer:     tracer,
		metrics:    newMetrics(meter),
	}
}

// Run executes one request end to end. Generation failures are reported as
// an error-status result; only invalid requests return an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (pantrygen.GenerationResult, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Run", trace.WithAttributes(
		attribute.String("task", req.Task),
		attribute.Int("members", len(req.Profile.Members)),
		attribute.Int("inventory_items", len(req.Inventory)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		p.metrics.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("task", req.Task)))
	}()

	if err := pantrygen.Validate(req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return pantrygen.GenerationResult{}, fmt.Errorf("invalid request: %w", err)
	}
	task, err := p.registry.Lookup(req.Task)
	if err != nil {
		span.SetStatus(codes.Error, "unknown task")
		return pantrygen.GenerationResult{}, err
	}

	slog.Info("PIPELINE: Starting run", "task", task.Name, "members", len(req.Profile.Members), "days", req.Days)

	gate := safety.CheckPreconditions(req.Profile)
	if !gate.CanProceed {
		slog.Warn("PIPELINE: Precondition gate blocked generation", "task", task.Name, "reason", gate.Message)
		span.AddEvent("precondition gate failed")
		res := pantrygen.GenerationResult{
			Status:    pantrygen.StatusNeedsClarification,
			Payload:   schema.ClarificationPayload(task, gate.Questions),
			Questions: gate.Questions,
			Message:   gate.Message,
		}
		p.finish(ctx, span, task.Name, res)
		return res, nil
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	gctx, err := rules.Assemble(rules.Input{
		Profile:         req.Profile,
		Inventory:       req.Inventory,
		History:         req.History,
		Now:             now,
		CurrentDay:      req.CurrentDay,
		Days:            req.Days,
		GuestCount:      req.GuestCount,
		BaseServings:    req.BaseServings,
		OutputLanguages: req.OutputLanguages,
		Extensions:      req.Extensions,
	}, p.cfg)
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return pantrygen.GenerationResult{}, fmt.Errorf("invalid request: %w", err)
	}

	messages, err := prompt.Build(task, gctx, p.cfg.BaselineLanguage)
	if err != nil {
		span.SetStatus(codes.Error, "build prompt")
		return pantrygen.GenerationResult{}, err
	}

	out := p.controller.Generate(ctx, task, messages)
	res := out.Result
	span.SetAttributes(
		attribute.String("provider", out.Provider),
		attribute.Int("attempts", out.Attempts),
	)

	if res.Status == pantrygen.StatusOK {
		res = p.postCheck(ctx, task, req, res)
	}

	p.finish(ctx, span, task.Name, res)
	return res, nil
}

// postCheck applies the inventory guard and the safety validator to a
// successful result.
func (p *Pipeline) postCheck(ctx context.Context, task schema.TaskSpec, req Request, res pantrygen.GenerationResult) pantrygen.GenerationResult {
	payload := res.Payload

	// Without an inventory there is nothing to ground ingredient ids against.
	if len(req.Inventory) > 0 {
		known := rules.KnownIDs(req.Inventory)
		payload = task.Items.Filter(payload, func(it schema.Item) bool {
			unknown := rules.UnresolvedIngredients(task.Items.IngredientIDs(it.Value), known)
			if len(unknown) == 0 {
				return true
			}
			name := task.Items.Name(it.Value)
			if p.cfg.RejectUnknownIngredients {
				slog.Warn("PIPELINE: Dropped item with unknown ingredients", "task", task.Name, "item", name, "path", it.Path, "unknown", unknown)
				res.Dropped = append(res.Dropped, pantrygen.DroppedItem{Name: name, Reason: ReasonUnknownIngredient, Unknown: unknown})
				return false
			}
			slog.Warn("PIPELINE: Flagged item with unknown ingredients", "task", task.Name, "item", name, "path", it.Path, "unknown", unknown)
			res.Flags = append(res.Flags, pantrygen.ItemFlag{
				Item:    name,
				Unknown: unknown,
				Message: fmt.Sprintf("%s references ingredients not in the inventory: %s", name, strings.Join(unknown, ", ")),
			})
			return true
		})
	}

	checked := safety.Validator{Profile: req.Profile, Items: task.Items}.Check(task.Name, payload)
	res.Payload = checked.Payload
	res.Dropped = append(res.Dropped, checked.Dropped...)

	if len(res.Dropped) == 0 {
		return res
	}
	for _, d := range res.Dropped {
		p.metrics.dropped.Add(ctx, 1, metric.WithAttributes(
			attribute.String("task", task.Name),
			attribute.String("reason", d.Reason),
		))
	}
	if len(task.Items.Items(res.Payload)) == 0 {
		slog.Warn("PIPELINE: Every generated item was dropped", "task", task.Name, "dropped", len(res.Dropped))
	}
	if p.alerts != nil {
		if err := p.alerts.ReportDropped(ctx, task.Name, res.Dropped); err != nil {
			slog.Error("PIPELINE: Failed to report dropped items", "task", task.Name, "error", err)
		}
	}
	return res
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, task string, res pantrygen.GenerationResult) {
	span.SetAttributes(attribute.String("status", string(res.Status)))
	p.metrics.results.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", string(res.Status)),
	))
	slog.Info("PIPELINE: Run finished",
		"task", task,
		"status", res.Status,
		"dropped", len(res.Dropped),
		"flags", len(res.Flags),
	)
}
