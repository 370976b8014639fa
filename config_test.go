package pantrygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineConfigIsValid(t *testing.T) {
	cfg := DefaultPipelineConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.True(t, cfg.RejectUnknownIngredients)
}

func TestValidatePipelineConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*PipelineConfig) {}},
		{name: "zero retries", mutate: func(c *PipelineConfig) { c.MaxRetries = 0 }},
		{name: "negative retries", mutate: func(c *PipelineConfig) { c.MaxRetries = -1 }, wantErr: true},
		{name: "too many retries", mutate: func(c *PipelineConfig) { c.MaxRetries = 11 }, wantErr: true},
		{name: "no baseline language", mutate: func(c *PipelineConfig) { c.BaselineLanguage = "" }, wantErr: true},
		{name: "negative party buffer", mutate: func(c *PipelineConfig) { c.PartyBuffer = -0.1 }, wantErr: true},
		{name: "zero validation errors", mutate: func(c *PipelineConfig) { c.MaxValidationErrors = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PRIMARY_PROVIDER", "ollama")
	t.Setenv("FALLBACK_PROVIDER", "mock")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("REJECT_UNKNOWN_INGREDIENTS", "false")
	t.Setenv("OTEL_SERVICE_NAME", "pantrygen-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Provider.Primary)
	assert.Equal(t, "mock", cfg.Provider.Fallback)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.False(t, cfg.Pipeline.RejectUnknownIngredients)
	assert.Equal(t, "en", cfg.Pipeline.BaselineLanguage)
	assert.Equal(t, int32(2048), cfg.Model.MaxTokens)
	assert.Equal(t, "pantrygen-test", cfg.Otel.ServiceName)
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("PRIMARY_PROVIDER", "carrier-pigeon")

	_, err := LoadConfig()
	assert.Error(t, err)
}
