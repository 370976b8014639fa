package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"pantrygen"
	"pantrygen/orchestrator"
	"pantrygen/provider"
	"pantrygen/schema"
	"pantrygen/slack"
	"pantrygen/storage"
	"pantrygen/store"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
)

type Results struct {
	Output  pantrygen.GenerationResult `json:"output"`
	Version string                     `json:"spec_version,omitempty"`
}

func main() {
	ctx := context.Background()

	cfg, err := pantrygen.LoadConfig()
	if err != nil {
		log.Fatalf("SETUP: Failed to load config: %s", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		log.Fatalf("SETUP: Failed to load AWS config: %s", err)
	}

	registry, err := loadRegistry(ctx, cfg.Artifacts, awsCfg)
	if err != nil {
		log.Fatalf("SETUP: Failed to load spec artifact: %s", err)
	}
	slog.Info("SETUP: Task registry loaded", "version", registry.Version(), "tasks", registry.Names())

	opts := provider.Options{HTTPClient: http.DefaultClient}
	if provider.Needs(cfg.Provider, provider.Bedrock) {
		opts.Bedrock = bedrockruntime.NewFromConfig(awsCfg)
	}
	primary, fallback, err := provider.FromConfig(cfg.Provider, cfg.Model, opts)
	if err != nil {
		log.Fatalf("SETUP: Failed to create generators: %s", err)
	}

	var history storage.Source
	if cfg.Artifacts.HistoryRedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Artifacts.HistoryRedisURL})
		defer rdb.Close()
		history = storage.NewRedisSource(rdb, cfg.Artifacts.HistoryRedisKey)
		slog.Info("SETUP: Cooking history backed by Redis", "addr", cfg.Artifacts.HistoryRedisURL, "key", cfg.Artifacts.HistoryRedisKey)
	}

	var alerts pantrygen.AlertSink
	if cfg.Artifacts.SlackWebhookURL != "" {
		alerts = slack.NewAlerter(slack.NewClient(cfg.Artifacts.SlackWebhookURL, http.DefaultClient), cfg.Artifacts.SlackChannel)
	}

	fn := func(ctx context.Context, req orchestrator.Request) (Results, error) {
		if cfg.Otel.Enabled() {
			_, _, otelShutdown, err := pantrygen.InitOtel(ctx, cfg.Otel)
			if err != nil {
				slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
				return Results{}, err
			}
			defer func() {
				if err := otelShutdown(ctx); err != nil {
					slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
				}
			}()
		}

		if len(req.History) == 0 && history != nil {
			entries, err := store.LoadHistory(ctx, history)
			if err != nil {
				slog.Error("SETUP: Failed to load history", "error", err)
				return Results{}, err
			}
			req.History = entries
		}

		controller := orchestrator.NewController(primary, fallback, cfg.Pipeline, pantrygen.NewStdoutAttemptLogger(), nil, nil)
		res, err := orchestrator.NewPipeline(registry, controller, cfg.Pipeline, alerts, nil, nil).Run(ctx, req)
		if err != nil {
			slog.Error("RESULT: Error handling request", "error", err)
			return Results{}, err
		}

		return Results{Output: res, Version: registry.Version()}, nil
	}

	lambda.Start(fn)
}

func loadRegistry(ctx context.Context, artifacts pantrygen.ArtifactsConfig, awsCfg aws.Config) (*schema.Registry, error) {
	switch {
	case artifacts.S3Bucket != "" && artifacts.SpecS3Key != "":
		src := storage.NewS3Source(s3.NewFromConfig(awsCfg), artifacts.S3Bucket, artifacts.SpecS3Key)
		return schema.LoadFrom(ctx, src)
	case artifacts.S3Bucket != "" || artifacts.SpecS3Key != "":
		return nil, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET and SPEC_S3_KEY must both be set")
	case artifacts.SpecPath != "":
		return schema.LoadFrom(ctx, storage.NewFileSource(artifacts.SpecPath))
	default:
		return schema.Default()
	}
}
