package provider

import (
	"context"
	"errors"
	"testing"

	"pantrygen"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBedrock struct{}

func (stubBedrock) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return nil, errors.New("not used")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		opts     Options
		wantName string
		wantErr  bool
	}{
		{name: "bedrock with explicit model", provider: Bedrock, opts: Options{ModelID: "anthropic.claude", Bedrock: stubBedrock{}}, wantName: "bedrock:anthropic.claude"},
		{name: "bedrock without client", provider: Bedrock, wantErr: true},
		{name: "ollama default model", provider: Ollama, opts: Options{OllamaEndpoint: "http://localhost:11434"}, wantName: "ollama:" + defaultOllamaModel},
		{name: "ollama model from model config", provider: Ollama, opts: Options{Model: pantrygen.ModelConfig{ModelID: "qwen2.5"}}, wantName: "ollama:qwen2.5"},
		{name: "openai", provider: OpenAI, opts: Options{ModelID: "gpt-4o-mini"}, wantName: "openai:gpt-4o-mini"},
		{name: "openai without model", provider: OpenAI, wantErr: true},
		{name: "mock", provider: Mock, wantName: "mock"},
		{name: "unknown", provider: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.provider, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, g.Name())
		})
	}
}

func TestNew_Empty(t *testing.T) {
	_, err := New("", Options{})
	assert.ErrorIs(t, err, pantrygen.ErrNoProvider)
}

func TestFromConfig(t *testing.T) {
	cfg := pantrygen.ProviderConfig{
		Primary:            Ollama,
		Fallback:           Mock,
		PrimaryModelID:     "llama3.1",
		BaseOllamaEndpoint: "http://ollama:11434",
	}

	primary, fallback, err := FromConfig(cfg, pantrygen.ModelConfig{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ollama:llama3.1", primary.Name())
	require.NotNil(t, fallback)
	assert.Equal(t, "mock", fallback.Name())

	cfg.Fallback = ""
	_, fallback, err = FromConfig(cfg, pantrygen.ModelConfig{}, Options{})
	require.NoError(t, err)
	assert.Nil(t, fallback)

	cfg.Primary = Bedrock
	_, _, err = FromConfig(cfg, pantrygen.ModelConfig{}, Options{})
	assert.ErrorContains(t, err, "primary")
}

func TestNeeds(t *testing.T) {
	cfg := pantrygen.ProviderConfig{Primary: Bedrock, Fallback: Ollama}
	assert.True(t, Needs(cfg, Bedrock))
	assert.True(t, Needs(cfg, Ollama))
	assert.False(t, Needs(cfg, OpenAI))
}
