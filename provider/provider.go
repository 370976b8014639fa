// Package provider builds generation backends from configuration.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"pantrygen"
	"pantrygen/provider/bedrock"
	"pantrygen/provider/mock"
	"pantrygen/provider/ollama"
	"pantrygen/provider/openai"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	Bedrock = "bedrock"
	Ollama  = "ollama"
	OpenAI  = "openai"
	Mock    = "mock"
)

const defaultOllamaModel = "llama3.2"

// BedrockClient is the slice of the Bedrock runtime API the bedrock generator uses.
type BedrockClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options carries everything any backend might need. Fields a backend does
// not use are ignored.
type Options struct {
	ModelID string
	Model   pantrygen.ModelConfig

	OllamaEndpoint string
	OpenAIBaseURL  string
	OpenAIAPIKey   string

	HTTPClient pantrygen.HTTPClient
	Bedrock    BedrockClient
}

// New returns the named backend.
func New(name string, opts Options) (pantrygen.Generator, error) {
	modelID := opts.ModelID
	if modelID == "" {
		modelID = opts.Model.ModelID
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch name {
	case Bedrock:
		if opts.Bedrock == nil {
			return nil, fmt.Errorf("provider %q: bedrock runtime client is required", name)
		}
		return bedrock.New(opts.Bedrock, bedrock.Options{
			ModelID:     modelID,
			MaxTokens:   opts.Model.MaxTokens,
			Temperature: opts.Model.Temperature,
			TopP:        opts.Model.TopP,
		}), nil
	case Ollama:
		if modelID == "" {
			modelID = defaultOllamaModel
		}
		return ollama.New(ollama.Options{
			BaseEndpoint: opts.OllamaEndpoint,
			ModelID:      modelID,
			HTTPClient:   httpClient,
		})
	case OpenAI:
		return openai.New(openai.Options{
			BaseURL:     opts.OpenAIBaseURL,
			APIKey:      opts.OpenAIAPIKey,
			ModelID:     modelID,
			Temperature: opts.Model.Temperature,
			MaxTokens:   opts.Model.MaxTokens,
			HTTPClient:  httpClient,
		})
	case Mock:
		return mock.New(), nil
	case "":
		return nil, pantrygen.ErrNoProvider
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

// FromConfig builds the primary backend and, when configured, the fallback.
// The fallback is nil when FALLBACK_PROVIDER is unset.
func FromConfig(cfg pantrygen.ProviderConfig, model pantrygen.ModelConfig, opts Options) (primary, fallback pantrygen.Generator, err error) {
	opts.Model = model
	opts.OllamaEndpoint = cfg.BaseOllamaEndpoint
	opts.OpenAIBaseURL = cfg.OpenAIBaseURL
	opts.OpenAIAPIKey = cfg.OpenAIAPIKey

	p := opts
	p.ModelID = cfg.PrimaryModelID
	if primary, err = New(cfg.Primary, p); err != nil {
		return nil, nil, fmt.Errorf("primary: %w", err)
	}

	if cfg.Fallback == "" {
		return primary, nil, nil
	}
	f := opts
	f.ModelID = cfg.FallbackModelID
	if fallback, err = New(cfg.Fallback, f); err != nil {
		return nil, nil, fmt.Errorf("fallback: %w", err)
	}
	return primary, fallback, nil
}

// Needs reports whether any configured backend is the named one, so callers
// only build clients they will use.
func Needs(cfg pantrygen.ProviderConfig, name string) bool {
	return cfg.Primary == name || cfg.Fallback == name
}
