package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/crop-disease-analyzer/internal/config"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/diagnosis"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/ports"
	"github.com/kirillkom/crop-disease-analyzer/internal/core/usecase"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier/mock"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/classifier/tflite"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/imaging"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/llm/fallback"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/queue/nats"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/crop-disease-analyzer/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue       ports.EventQueue
	AnalyzeUC   *usecase.AnalyzeUseCase
	RecommendUC *usecase.RecommendUseCase
	ReviewUC    *usecase.ReviewUseCase
	StatsUC     *usecase.StatsUseCase

	closeFn func()
}

// New wires the application. Pipeline metrics are registered into registerer
// so each binary serves them from its own /metrics endpoint.
func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	pipelineMetrics := metrics.NewPipelineMetrics(service, registerer)

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	analysisRepo := postgres.NewAnalysisRepository(db)
	recommendationRepo := postgres.NewRecommendationRepository(db)
	statsRepo := postgres.NewStatsRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg)).WithObserver(pipelineMetrics)

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		HandlerTimeout:     time.Duration(cfg.NATSHandlerTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	manifest, err := classifier.LoadManifest(cfg.ModelManifestPath)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load model manifest: %w", err)
	}
	if norm := strings.TrimSpace(cfg.ModelNormalization); norm != "" {
		manifest.Normalization = norm
	}
	imageClassifier, closeClassifier := loadClassifier(cfg, manifest)

	preprocessCfg := imaging.DefaultConfig()
	preprocessCfg.InputSize = manifest.InputSize
	preprocessCfg.Normalization = imaging.Normalization(manifest.Normalization)
	preprocessor := imaging.NewPreprocessor(preprocessCfg)

	gate := diagnosis.NewPlausibilityGate(imageClassifier.Labels(), diagnosis.Thresholds{
		MinConfidence:        cfg.GateMinConfidence,
		MaxConfidence:        cfg.GateMaxConfidence,
		MaxTopTwoRatio:       cfg.GateMaxTopTwoRatio,
		MaxNormalizedEntropy: cfg.GateMaxEntropy,
		MinTopFiveMass:       cfg.GateMinTopFiveMass,
		MaxHealthyConfidence: cfg.GateMaxHealthyConfidence,
	})
	taxonomy := diagnosis.NewTaxonomy(manifest.CropAliases)

	inference := usecase.NewInferenceAdapter(preprocessor, imageClassifier, gate, taxonomy, cfg.InferenceParallelism, pipelineMetrics)
	analyzeUC := usecase.NewAnalyzeUseCase(inference, analysisRepo, storage, queue, usecase.IntakeLimits{
		MaxImages:     cfg.MaxImages,
		MaxImageBytes: int64(cfg.MaxImageSizeMB) << 20,
	}, pipelineMetrics)

	fallbackGenerator, err := fallback.New()
	if err != nil {
		closeClassifier()
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init fallback advice: %w", err)
	}
	var primary ports.AdviceGenerator
	if cfg.OllamaEnabled {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaModel, time.Duration(cfg.OllamaTimeoutSeconds)*time.Second, executor)
		primary = ollama.NewAdviceGenerator(client)
		slog.Info("advice_generator_ready", "source", ollama.SourceName, "model", client.Model())
	} else {
		slog.Info("advice_generator_ready", "source", fallback.SourceName)
	}
	recommendUC := usecase.NewRecommendUseCase(analysisRepo, recommendationRepo, primary, fallbackGenerator, pipelineMetrics)

	return &App{
		Config: cfg,
		Queue:  queue,

		AnalyzeUC:   analyzeUC,
		RecommendUC: recommendUC,
		ReviewUC:    usecase.NewReviewUseCase(recommendationRepo),
		StatsUC:     usecase.NewStatsUseCase(statsRepo, xlsx.NewExporter(), cfg.StatsTopN),

		closeFn: func() {
			queue.Close()
			closeClassifier()
			_ = storage.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// loadClassifier prefers the TFLite model and falls back to the mock
// classifier when the artifact or the build tag is missing.
func loadClassifier(cfg config.Config, manifest classifier.Manifest) (ports.ImageClassifier, func()) {
	model, err := tflite.Load(cfg.ModelPath, manifest, cfg.ModelThreads)
	if err == nil {
		slog.Info("classifier_ready", "classifier", model.Name(), "model_path", cfg.ModelPath, "labels", len(model.Labels()))
		return model, func() { _ = model.Close() }
	}

	slog.Warn("classifier_fallback_mock",
		"model_path", cfg.ModelPath,
		"error", err,
		"note", "predictions are random and for demonstration only",
	)
	return mock.New(manifest.Labels, int64(cfg.MockClassifierSeed)), func() {}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond
	out.AttemptTimeout = time.Duration(cfg.AttemptTimeoutSeconds) * time.Second
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second
	return out
}
