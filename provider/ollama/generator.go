// Package ollama implements a Generator on Ollama's /api/chat endpoint, passing
// the output schema as the structured-output format.
package ollama

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

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type Generator struct {
	endpoint   string
	model      string
	httpClient pantrygen.HTTPClient
	options    options
}

type Options struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   pantrygen.HTTPClient
}

func New(opts Options) (*Generator, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("ollama: model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Generator{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimSuffix(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384, // safe default; raise if the host can handle it
		},
	}, nil
}

func (g *Generator) Name() string { return "ollama:" + g.model }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string             `json:"model"`
	Messages []wireMessage      `json:"messages"`
	Format   *jsonschema.Schema `json:"format,omitempty"`
	Stream   bool               `json:"stream"`
	Options  options            `json:"options,omitempty"`
}

type wireResponse struct {
	Message wireMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

// Generate posts the conversation and decodes the assistant's JSON content.
func (g *Generator) Generate(ctx context.Context, messages []pantrygen.Message, s *jsonschema.Schema) (map[string]any, error) {
	slog.Info("LLM_CLIENT: Invoked", "provider", g.Name(), "messages_len", len(messages))

	ctx, span := otel.Tracer(pantrygen.TracerNameOllama).Start(ctx, "ollama.Chat", trace.WithAttributes(
		attribute.String("model", g.model),
		attribute.Int("messages_len", len(messages)),
	))
	defer span.End()

	msgs := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}
	reqBytes, err := json.Marshal(wireRequest{
		Model:    g.model,
		Messages: msgs,
		Format:   s,
		Stream:   false,
		Options:  g.options,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama chat: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("LLM_CLIENT: Ollama rate limited", "provider", g.Name(), "status", resp.StatusCode)
		return nil, &pantrygen.RateLimitError{Provider: g.Name(), Err: fmt.Errorf("%s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("LLM_CLIENT: %s: %s", resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed", "provider", g.Name(), "err", err, "body", string(body))
		return nil, &pantrygen.MalformedOutputError{Provider: g.Name(), Raw: string(body), Err: err}
	}
	if wr.Error != "" {
		return nil, fmt.Errorf("ollama: %s", wr.Error)
	}

	slog.Info("LLM_CLIENT: Ollama response received", "provider", g.Name(), "content_length", len(wr.Message.Content))
	return pantrygen.ParseObject(g.Name(), wr.Message.Content)
}
