// Package openai implements a Generator on any OpenAI-compatible
// /chat/completions endpoint using json_schema response formats.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"pantrygen"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultBaseURL = "https://api.openai.com/v1"

type Options struct {
	BaseURL     string
	APIKey      string
	ModelID     string
	Temperature float32
	MaxTokens   int32
	HTTPClient  pantrygen.HTTPClient
}

type Generator struct {
	opts Options
}

func New(opts Options) (*Generator, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("openai: model id is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Generator{opts: opts}, nil
}

func (g *Generator) Name() string { return "openai:" + g.opts.ModelID }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string             `json:"name"`
	Strict bool               `json:"strict"`
	Schema *jsonschema.Schema `json:"schema"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	MaxTokens      int32           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends the conversation and decodes the first choice's JSON content.
func (g *Generator) Generate(ctx context.Context, messages []pantrygen.Message, s *jsonschema.Schema) (map[string]any, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", g.Name(), "messages_len", len(messages))

	ctx, span := otel.Tracer(pantrygen.TracerNameOpenAI).Start(ctx, "openai.ChatCompletions", trace.WithAttributes(
		attribute.String("model", g.opts.ModelID),
		attribute.Int("messages_len", len(messages)),
	))
	defer span.End()

	req := chatRequest{
		Model:       g.opts.ModelID,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	if s != nil {
		req.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchemaFormat{Name: "result", Schema: s},
		}
	}

	status, body, err := g.post(ctx, req)
	if err != nil {
		return nil, err
	}

	// Some compatible servers reject response_format; retry once without it.
	if status == http.StatusBadRequest && req.ResponseFormat != nil && rejectsStructuredOutput(body) {
		slog.Warn("LLM_CLIENT: Structured output rejected, retrying without response_format", "provider", g.Name())
		req.ResponseFormat = &responseFormat{Type: "json_object"}
		status, body, err = g.post(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		slog.Warn("LLM_CLIENT: OpenAI rate limited", "provider", g.Name())
		return nil, &pantrygen.RateLimitError{Provider: g.Name(), Err: fmt.Errorf("429: %s", strings.TrimSpace(string(body)))}
	case status != http.StatusOK:
		return nil, fmt.Errorf("openai: status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &pantrygen.MalformedOutputError{Provider: g.Name(), Raw: string(body), Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &pantrygen.MalformedOutputError{Provider: g.Name(), Raw: string(body), Err: fmt.Errorf("no choices in response")}
	}

	choice := out.Choices[0]
	slog.Info("LLM_CLIENT: OpenAI response received",
		"provider", g.Name(),
		"finish_reason", choice.FinishReason,
		"content_length", len(choice.Message.Content),
	)
	if choice.FinishReason == "length" {
		return nil, &pantrygen.MalformedOutputError{
			Provider: g.Name(),
			Raw:      choice.Message.Content,
			Err:      fmt.Errorf("output truncated at max_tokens"),
		}
	}
	return pantrygen.ParseObject(g.Name(), choice.Message.Content)
}

func (g *Generator) post(ctx context.Context, body chatRequest) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	}

	resp, err := g.opts.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("openai read body: %w", err)
	}
	return resp.StatusCode, b, nil
}

func rejectsStructuredOutput(body []byte) bool {
	s := string(body)
	return strings.Contains(s, "response_format") || strings.Contains(s, "json_schema")
}
