package pantrygen

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
)

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=2048" validate:"gt=0"`
	Temperature float32 `env:"TEMPERATURE,default=0.2" validate:"gte=0,lte=2"`
	TopP        float32 `env:"TOP_P,default=0.9" validate:"gte=0,lte=1"`
}

type ProviderConfig struct {
	Primary            string `env:"PRIMARY_PROVIDER,default=bedrock" validate:"oneof=bedrock ollama openai mock"`
	Fallback           string `env:"FALLBACK_PROVIDER" validate:"omitempty,oneof=bedrock ollama openai mock"`
	PrimaryModelID     string `env:"PRIMARY_MODEL_ID"`
	FallbackModelID    string `env:"FALLBACK_MODEL_ID"`
	BaseOllamaEndpoint string `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL,default=https://api.openai.com/v1"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
}

type PipelineConfig struct {
	MaxRetries               int     `env:"MAX_RETRIES,default=2" validate:"gte=0,lte=10"`
	MaxValidationErrors      int     `env:"MAX_VALIDATION_ERRORS,default=30" validate:"gt=0"`
	MaxCorrectionChars       int     `env:"MAX_CORRECTION_CHARS,default=2000" validate:"gt=0"`
	RecencyWindowDays        int     `env:"RECENCY_WINDOW_DAYS,default=14" validate:"gte=0"`
	ExpiryThresholdDays      int     `env:"EXPIRY_THRESHOLD_DAYS,default=3" validate:"gte=0"`
	WeeklyWindowDays         int     `env:"WEEKLY_WINDOW_DAYS,default=7" validate:"gte=0"`
	WeeklyCuisineCap         int     `env:"WEEKLY_CUISINE_CAP,default=2" validate:"gte=0"`
	LeftoverWindowDays       int     `env:"LEFTOVER_WINDOW_DAYS,default=2" validate:"gte=0"`
	PartyBuffer              float64 `env:"PARTY_BUFFER,default=0.10" validate:"gte=0"`
	BaselineLanguage         string  `env:"BASELINE_LANGUAGE,default=en" validate:"required"`
	MaxExtensionKeys         int     `env:"MAX_EXTENSION_KEYS,default=32" validate:"gte=0"`
	RejectUnknownIngredients bool    `env:"REJECT_UNKNOWN_INGREDIENTS,default=true"`
}

type ArtifactsConfig struct {
	SpecPath        string `env:"SPEC_PATH"`
	ProfilePath     string `env:"PROFILE_PATH,default=artifacts/profile.json"`
	InventoryPath   string `env:"INVENTORY_PATH,default=artifacts/pantry.json"`
	HistoryPath     string `env:"HISTORY_PATH,default=artifacts/history.json"`
	S3Bucket        string `env:"ARTIFACTS_S3_BUCKET"`
	SpecS3Key       string `env:"SPEC_S3_KEY"`
	HistoryRedisURL string `env:"HISTORY_REDIS_ADDR"`
	HistoryRedisKey string `env:"HISTORY_REDIS_KEY,default=pantrygen:history"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `env:"SLACK_CHANNEL,default=#pantry-safety"`
}

// Config is decoded once at process start and passed by value into every pipeline.
type Config struct {
	Model     ModelConfig
	Provider  ProviderConfig
	Pipeline  PipelineConfig
	Artifacts ArtifactsConfig
	Otel      OtelConfig
}

// DefaultPipelineConfig mirrors the env defaults for code paths that do not read the environment.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxRetries:               2,
		MaxValidationErrors:      30,
		MaxCorrectionChars:       2000,
		RecencyWindowDays:        14,
		ExpiryThresholdDays:      3,
		WeeklyWindowDays:         7,
		WeeklyCuisineCap:         2,
		LeftoverWindowDays:       2,
		PartyBuffer:              0.10,
		BaselineLanguage:         "en",
		MaxExtensionKeys:         32,
		RejectUnknownIngredients: true,
	}
}

var validate = validator.New()

// Validate checks struct-tag constraints on any config or request value.
func Validate(v any) error {
	return validate.Struct(v)
}

// LoadConfig decodes every config section from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	sections := []any{&cfg.Model, &cfg.Provider, &cfg.Pipeline, &cfg.Artifacts, &cfg.Otel}
	for _, s := range sections {
		if err := envdecode.Decode(s); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
		if err := Validate(s); err != nil {
			return Config{}, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}
