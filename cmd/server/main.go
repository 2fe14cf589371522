package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/service"
	"github.com/hualiang/home-ledger/internal/config"
	"github.com/hualiang/home-ledger/internal/infrastructure/external/openai"
	"github.com/hualiang/home-ledger/internal/infrastructure/persistence/repository"
	"github.com/hualiang/home-ledger/internal/infrastructure/storage"
	"github.com/hualiang/home-ledger/internal/infrastructure/worker"
	httpserver "github.com/hualiang/home-ledger/internal/interfaces/http"
	"github.com/hualiang/home-ledger/internal/pipeline"
	"github.com/hualiang/home-ledger/pkg/database"
	"github.com/hualiang/home-ledger/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// .env is optional; environment beats file either way
	_ = gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting home-ledger server", zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Assets.Dir, 0755); err != nil {
		logger.Fatal("Failed to create assets directory", zap.Error(err))
	}

	receiptRepo := repository.NewReceiptRepository(db.DB, logger)
	catalogRepo := repository.NewCatalogRepository(db.DB, logger)
	jobRepo := repository.NewJobRepository(db.DB, logger)

	assetStore := storage.NewLocalAssetStore(cfg.Assets.Dir, cfg.Assets.BaseURL, logger)

	extractor := openai.NewExtractor(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.Model,
		FallbackModels: cfg.OpenAI.FallbackModels,
		Temperature:    cfg.OpenAI.Temperature,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		Timeout:        cfg.OpenAI.Timeout,
	}, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.NewMetrics(registry)

	pl := pipeline.New(
		pipeline.Config{
			Evaluator: cfg.Pipeline.Confidence,
			Detector:  cfg.Pipeline.Duplicate,
		},
		receiptRepo,
		catalogRepo,
		jobRepo,
		assetStore,
		extractor,
		metrics,
		logger,
	)

	manager := worker.NewManager(logger)
	manager.Register(worker.NewIngestWorker(worker.IngestWorkerConfig{
		PollInterval:   cfg.Pipeline.PollInterval,
		BatchSize:      cfg.Pipeline.BatchSize,
		ProcessTimeout: cfg.Pipeline.ProcessTimeout,
		Concurrency:    cfg.Pipeline.Concurrency,
	}, jobRepo, pl, logger))

	receiptService := service.NewReceiptService(receiptRepo, jobRepo, assetStore, logger)
	catalogService := service.NewCatalogService(catalogRepo, receiptRepo, logger)

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, receiptService, catalogService, cfg.Assets.Dir, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server exited with error", zap.Error(err))
	}

	if err := manager.StopAll(); err != nil {
		logger.Error("Worker shutdown reported errors", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
