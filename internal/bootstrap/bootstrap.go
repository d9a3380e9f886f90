package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/albertai/studyset/internal/config"
	"github.com/albertai/studyset/internal/core/usecase"
	"github.com/albertai/studyset/internal/infrastructure/export/xlsx"
	"github.com/albertai/studyset/internal/infrastructure/extractor/pdf"
	"github.com/albertai/studyset/internal/infrastructure/llm/openaicompat"
	"github.com/albertai/studyset/internal/infrastructure/queue/nats"
	"github.com/albertai/studyset/internal/infrastructure/repository/postgres"
	"github.com/albertai/studyset/internal/infrastructure/resilience"
	"github.com/albertai/studyset/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Metrics    *metrics.HTTPServerMetrics
	Repo       *postgres.StudySetRepository
	GenerateUC *usecase.GenerateStudySetUseCase
	ExportUC   *usecase.ExportStudySetUseCase

	closeFn func()
}

// New wires the generation pipeline. service labels metrics and logs of the calling binary.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewStudySetRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registerer())

	llmExecutor := resilience.NewExecutor(llmResilienceConfig(cfg))
	llmExecutor.SetRetryHook(pipelineMetrics.ObserveRetry)
	client, err := openaicompat.New(openaicompat.Config{
		BaseURL:      cfg.LLMBaseURL,
		Model:        cfg.LLMModel,
		APIKey:       cfg.LLMAPIKey,
		APIKeyHeader: cfg.LLMAPIKeyHeader,
		Temperature:  &cfg.LLMTemperature,
		MaxTokens:    cfg.LLMMaxTokens,
	}, llmExecutor)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init completion client: %w", err)
	}

	opts := []usecase.Option{usecase.WithObserver(pipelineMetrics)}
	var publisher *nats.Publisher
	if cfg.NATSURL != "" {
		publisher, err = nats.NewPublisher(cfg.NATSURL, nats.Options{
			Subject:            cfg.NATSSubject,
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		opts = append(opts, usecase.WithEventPublisher(publisher))
	} else {
		slog.Info("run_events_disabled", "reason", "NATS_URL is empty")
	}

	generateUC := usecase.NewGenerateStudySetUseCase(
		pdf.NewExtractor(),
		client,
		repo,
		usecase.GenerationSettings{
			ItemsPerType:   cfg.GenItemsPerType,
			MaxSourceChars: cfg.GenMaxSourceChars,
			Concurrency:    cfg.GenConcurrency,
			SystemPrompt:   cfg.GenSystemPrompt,
		},
		opts...,
	)
	exportUC := usecase.NewExportStudySetUseCase(repo, xlsx.NewWriter())

	return &App{
		Config:     cfg,
		Metrics:    httpMetrics,
		Repo:       repo,
		GenerateUC: generateUC,
		ExportUC:   exportUC,

		closeFn: func() { closeAll(publisher, db) },
	}, nil
}

func llmResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.MaxAttempts = 1 + cfg.LLMMaxRetries
	if cfg.LLMTimeoutSeconds > 0 {
		out.AttemptTimeout = time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	}
	out.BreakerEnabled = cfg.LLMBreakerEnabled
	return out
}

func closeAll(publisher *nats.Publisher, db *sql.DB) {
	if publisher != nil {
		publisher.Close()
	}
	_ = db.Close()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
