// Package bedrock implements a Generator on the Amazon Bedrock Converse API.
// The output schema is registered as the input schema of a single forced
// tool so the model answers with a structured tool call.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pantrygen"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Structured results for a multi-day plan are longer than chat turns.
	defaultMaxTokens = 2048

	// Low temperature and top_p keep JSON output consistent.
	defaultTemperature = 0.2
	defaultTopP        = 0.9

	resultToolName = "emit_result"
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Generator struct {
	brc  bedrockRuntimeClient
	opts Options
}

func New(brc bedrockRuntimeClient, opts Options) *Generator {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Generator{brc: brc, opts: opts}
}

func (g *Generator) Name() string { return "bedrock:" + g.opts.ModelID }

// Generate sends the conversation through Converse and returns the decoded result object.
func (g *Generator) Generate(ctx context.Context, messages []pantrygen.Message, s *jsonschema.Schema) (map[string]any, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", g.Name(), "messages_len", len(messages))

	ctx, span := otel.Tracer(pantrygen.TracerNameBedrock).Start(ctx, "bedrock.Converse", trace.WithAttributes(
		attribute.String("model", g.opts.ModelID),
		attribute.Int("messages_len", len(messages)),
	))
	defer span.End()

	sys, msgs := buildMessages(messages)
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(g.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(g.opts.MaxTokens),
			Temperature: aws.Float32(g.opts.Temperature),
			TopP:        aws.Float32(g.opts.TopP),
		},
	}
	if s != nil {
		spec, err := buildToolSpec(s)
		if err != nil {
			return nil, err
		}
		in.ToolConfig = &types.ToolConfiguration{
			Tools:      []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
			ToolChoice: &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(resultToolName)}},
		}
	}

	out, err := g.brc.Converse(ctx, in)
	if err != nil {
		if isThrottle(err) {
			slog.Warn("LLM_CLIENT: Bedrock throttled", "provider", g.Name(), "error", err)
			return nil, &pantrygen.RateLimitError{Provider: g.Name(), Err: err}
		}
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "provider", g.Name(), "error", err)
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	attrs := []any{"provider", g.Name(), "stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens),
		)
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	switch out.StopReason {
	case "max_tokens":
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MaxTokens")
		text, _ := textFromOutput(out)
		return nil, &pantrygen.MalformedOutputError{
			Provider: g.Name(),
			Raw:      text,
			Err:      errors.New("model hit MaxTokens limit; output truncated"),
		}

	case "guardrail_intervened", "content_filtered":
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return nil, fmt.Errorf("model response blocked by Bedrock safety filters")
	}

	if result, ok, err := toolResultFromOutput(out); ok || err != nil {
		if err != nil {
			return nil, &pantrygen.MalformedOutputError{Provider: g.Name(), Err: err}
		}
		return result, nil
	}

	text, _ := textFromOutput(out)
	return pantrygen.ParseObject(g.Name(), text)
}

// buildMessages splits out system blocks and merges consecutive turns of the
// same role, which Converse rejects.
func buildMessages(messages []pantrygen.Message) ([]types.SystemContentBlock, []types.Message) {
	var sys []types.SystemContentBlock
	var msgs []types.Message
	for _, m := range messages {
		if m.Role == pantrygen.RoleSystem {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == pantrygen.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		block := &types.ContentBlockMemberText{Value: m.Content}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, block)
			continue
		}
		msgs = append(msgs, types.Message{Role: role, Content: []types.ContentBlock{block}})
	}
	return sys, msgs
}

// buildToolSpec wraps the output schema as the input schema of the result tool.
func buildToolSpec(s *jsonschema.Schema) (types.ToolSpecification, error) {
	// Marshal through JSON so the schema's own MarshalJSON shapes the document.
	schemaJSON, err := json.Marshal(s)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal output schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal output schema: %w", err)
	}

	return types.ToolSpecification{
		Name:        aws.String(resultToolName),
		Description: aws.String("Return the final result. The input must satisfy the schema exactly."),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// toolResultFromOutput returns the input of the result tool call, if any.
func toolResultFromOutput(out *bedrockruntime.ConverseOutput) (map[string]any, bool, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return nil, false, nil
	}
	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || tu.Value.Input == nil {
			continue
		}
		// Round-trip through JSON so numbers decode as float64 like every other provider.
		raw, err := tu.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return nil, true, fmt.Errorf("read tool input: %w", err)
		}
		var result map[string]any
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, true, fmt.Errorf("decode tool input: %w", err)
		}
		return result, true, nil
	}
	return nil, false, nil
}

// textFromOutput joins the assistant's text blocks, preferring the last block
// that looks like a single JSON object.
func textFromOutput(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", nil
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return "", nil
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s, nil
		}
	}
	return strings.Join(texts, "\n"), nil
}

func isThrottle(err error) bool {
	var te *types.ThrottlingException
	if errors.As(err, &te) {
		return true
	}
	var qe *types.ServiceQuotaExceededException
	if errors.As(err, &qe) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			return true
		}
	}
	return false
}
