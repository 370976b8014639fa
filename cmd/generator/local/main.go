package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"

	"pantrygen"
	"pantrygen/orchestrator"
	"pantrygen/provider"
	"pantrygen/schema"
	"pantrygen/slack"
	"pantrygen/storage"
	"pantrygen/store"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

func main() {
	ctx := context.Background()

	cfg, err := pantrygen.LoadConfig()
	if err != nil {
		log.Fatalf("SETUP: Failed to load config: %s", err)
	}

	task := argOr(1, "meal_plan")
	days, err := strconv.Atoi(argOr(2, "3"))
	if err != nil {
		log.Fatalf("SETUP: Invalid day count %q: %s", argOr(2, "3"), err)
	}

	registry, err := loadRegistry(ctx, cfg.Artifacts.SpecPath)
	if err != nil {
		slog.Error("SETUP: Failed to load spec artifact", "error", err)
		return
	}

	profile, err := store.LoadProfile(ctx, storage.NewFileSource(cfg.Artifacts.ProfilePath))
	if err != nil {
		slog.Error("SETUP: Failed to load profile", "error", err)
		return
	}
	inventory, err := store.LoadInventory(ctx, storage.NewFileSource(cfg.Artifacts.InventoryPath))
	if err != nil {
		slog.Error("SETUP: Failed to load inventory", "error", err)
		return
	}
	history, err := store.LoadHistory(ctx, storage.NewFileSource(cfg.Artifacts.HistoryPath))
	if err != nil {
		slog.Error("SETUP: Failed to load history", "error", err)
		return
	}
	slog.Info("SETUP: Collaborator data loaded from files",
		"members", len(profile.Members),
		"inventory_items", len(inventory),
		"history_entries", len(history),
	)

	opts := provider.Options{HTTPClient: http.DefaultClient}
	if provider.Needs(cfg.Provider, provider.Bedrock) {
		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to create Bedrock client", "error", err)
			return
		}
		opts.Bedrock = brc
	}
	primary, fallback, err := provider.FromConfig(cfg.Provider, cfg.Model, opts)
	if err != nil {
		slog.Error("SETUP: Failed to create generators", "error", err)
		return
	}

	if cfg.Otel.Enabled() {
		_, _, otelShutdown, err := pantrygen.InitOtel(ctx, cfg.Otel)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
	}

	logger, cleanup, err := newAttemptLogger(task, primary.Name())
	if err != nil {
		slog.Error("SETUP: Failed to create attempt logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush attempt log", "error", err)
		}
	}()

	webhook := cfg.Artifacts.SlackWebhookURL
	if webhook == "" {
		// No webhook configured: log alerts from a local stand-in instead.
		testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(bytes.Buffer)
			body.ReadFrom(r.Body) // nolint: errcheck
			slog.Info("ALERT: Received request", "path", r.URL.Path, "body", body.String())
			w.WriteHeader(http.StatusOK)
		}))
		defer testServer.Close()
		webhook = testServer.URL
	}
	alerts := slack.NewAlerter(slack.NewClient(webhook, http.DefaultClient), cfg.Artifacts.SlackChannel)

	controller := orchestrator.NewController(primary, fallback, cfg.Pipeline, logger, nil, nil)
	pipeline := orchestrator.NewPipeline(registry, controller, cfg.Pipeline, alerts, nil, nil)

	res, err := pipeline.Run(ctx, orchestrator.Request{
		Task:      task,
		Profile:   profile,
		Inventory: inventory,
		History:   history,
		Days:      days,
	})
	if err != nil {
		slog.Error("FAILURE: Error handling request", "error", err)
		return
	}

	if os.Getenv("DEBUG_DUMP") == "true" {
		pantrygen.Dump(os.Stderr, res)
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		slog.Error("RESULT: Failed to encode result", "error", err)
		return
	}
	fmt.Println(string(out))
}

func loadRegistry(ctx context.Context, specPath string) (*schema.Registry, error) {
	if specPath == "" {
		return schema.Default()
	}
	return schema.LoadFrom(ctx, storage.NewFileSource(specPath))
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func newAttemptLogger(task, providerName string) (pantrygen.AttemptLogger, func() error, error) {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFilePath := pantrygen.NewAttemptLogFilePath(task, providerName)
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := pantrygen.NewFileAttemptLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
