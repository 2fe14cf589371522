package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
	"github.com/hualiang/home-ledger/internal/domain/entity"
	"github.com/hualiang/home-ledger/internal/pipeline"
)

// IngestWorkerConfig holds polling configuration
type IngestWorkerConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	ProcessTimeout time.Duration
	Concurrency    int
}

// DefaultIngestWorkerConfig returns the standard configuration
func DefaultIngestWorkerConfig() IngestWorkerConfig {
	return IngestWorkerConfig{
		PollInterval:   2 * time.Second,
		BatchSize:      5,
		ProcessTimeout: 120 * time.Second,
		Concurrency:    3,
	}
}

// IngestWorker polls the job queue and runs claimed jobs through the
// ingestion pipeline. Jobs in one batch run concurrently up to the
// configured limit; each job is independent.
type IngestWorker struct {
	config   IngestWorkerConfig
	jobs     port.JobRepository
	pipeline *pipeline.Pipeline
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewIngestWorker creates an ingest worker
func NewIngestWorker(
	config IngestWorkerConfig,
	jobs port.JobRepository,
	pl *pipeline.Pipeline,
	logger *zap.Logger,
) *IngestWorker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &IngestWorker{
		config:   config,
		jobs:     jobs,
		pipeline: pl,
		logger:   logger,
	}
}

// Start begins the polling loop
func (w *IngestWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("ingest worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("IngestWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("concurrency", w.config.Concurrency))

	go w.pollLoop(runCtx)
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to finish
func (w *IngestWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.logger.Info("IngestWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *IngestWorker) Name() string {
	return "IngestWorker"
}

func (w *IngestWorker) pollLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

// drainOnce claims one batch and runs it to completion before the next tick
func (w *IngestWorker) drainOnce(ctx context.Context) {
	jobs, err := w.jobs.ClaimQueued(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Failed to claim queued jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Debug("Claimed ingest jobs", zap.Int("count", len(jobs)))

	sem := make(chan struct{}, w.config.Concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job *entity.IngestJob) {
			defer wg.Done()
			defer func() { <-sem }()

			jobCtx, cancel := context.WithTimeout(ctx, w.config.ProcessTimeout)
			defer cancel()

			if err := w.pipeline.Process(jobCtx, job); err != nil {
				w.logger.Warn("Ingest job failed",
					zap.String("job_id", job.ID),
					zap.String("receipt_id", job.ReceiptID),
					zap.Error(err))
			}
		}(job)
	}
	wg.Wait()
}
