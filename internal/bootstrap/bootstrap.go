package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/core/detector"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/extraction"
	"github.com/kirillkom/merchant-statements/internal/core/extraction/chase"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
	"github.com/kirillkom/merchant-statements/internal/core/usecase"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/document"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/ocr"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/queue/nats"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/resilience"
	"github.com/kirillkom/merchant-statements/internal/infrastructure/storage/localfs"
)

type Options struct {
	Logger          *slog.Logger
	Recorder        ports.ExtractionRecorder
	BreakerListener resilience.StateListener
}

// Extraction is the storage-free part of the pipeline: everything needed to
// turn file bytes into an ExtractionResult. The CLI tools use it directly.
type Extraction struct {
	Loader    *document.Loader
	Extractor *usecase.ExtractStatementUseCase
	Registry  *detector.Registry
}

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.StatementRepository
	IngestUC  ports.StatementIngestor
	ManualUC  ports.ManualEntryService
	QueryUC   *usecase.StatementQueryUseCase
	ProcessUC ports.StatementProcessor

	closeFn func()
}

func NewExtraction(cfg config.Config, opts Options) (*Extraction, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	executorOpts := []resilience.ExecutorOption{resilience.WithLogger(logger)}
	if opts.BreakerListener != nil {
		executorOpts = append(executorOpts, resilience.WithStateListener(opts.BreakerListener))
	}
	executor := resilience.NewExecutor(ocrResilience(cfg), executorOpts...)
	recognizer := ocr.New(ocr.Config{
		BaseURL:       cfg.OCRURL,
		Timeout:       cfg.OCRTimeout,
		RatePerSecond: cfg.OCRRatePerSecond,
		Burst:         cfg.OCRBurst,
	}, executor, logger)

	acquirer := extraction.NewAcquirer(recognizer, extraction.AcquirerOptions{
		MinTextChars:    cfg.ExtractMinTextChars,
		FallbackTimeout: cfg.ExtractFallbackTimeout,
		Logger:          logger,
	})

	signatures, err := detector.LoadSignatures(cfg.SignaturesPath)
	if err != nil {
		return nil, fmt.Errorf("load processor signatures: %w", err)
	}
	registry, err := detector.NewRegistry(signatures, chase.New(acquirer, cfg.ExtractPreferFallback))
	if err != nil {
		return nil, fmt.Errorf("build parser registry: %w", err)
	}

	return &Extraction{
		Loader:    document.NewLoader(),
		Extractor: usecase.NewExtractStatementUseCase(registry, logger),
		Registry:  registry,
	}, nil
}

// ExtractFile runs the pipeline over a file on disk. Unreadable and rejected
// documents come back as failed results; the error is reserved for I/O.
func (e *Extraction) ExtractFile(ctx context.Context, path, processorHint string) (domain.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := e.Loader.Load(ctx, filepath.Base(path), "", data)
	if err != nil {
		return domain.FailedExtraction(domain.UnknownProcessor, err.Error(), nil), nil
	}
	res, err := e.Extractor.Extract(ctx, doc, processorHint)
	if err != nil {
		if unsupported, ok := detector.AsUnsupported(err); ok {
			failed := domain.FailedExtraction(unsupported.Processor, unsupported.Reason, nil)
			failed.PageCount = doc.PageCount()
			return failed, nil
		}
		return domain.FailedExtraction(domain.UnknownProcessor, err.Error(), nil), nil
	}
	return res, nil
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extract, err := NewExtraction(cfg, opts)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewStatementRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger)),
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	processOpts := []usecase.ProcessOption{
		usecase.WithReviewThreshold(decimal.NewFromInt(int64(cfg.ReviewConfidenceThreshold))),
		usecase.WithProcessLogger(logger),
	}
	if opts.Recorder != nil {
		processOpts = append(processOpts, usecase.WithExtractionRecorder(opts.Recorder))
	}

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  usecase.NewIngestStatementUseCase(repo, storage, queue),
		ManualUC:  usecase.NewManualEntryUseCase(repo),
		QueryUC:   usecase.NewStatementQueryUseCase(repo),
		ProcessUC: usecase.NewProcessStatementUseCase(repo, storage, extract.Loader, extract.Extractor, processOpts...),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func ocrResilience(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.OCRRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.OCRRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.OCRRetryMaxBackoff
	if cfg.OCRBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.OCRBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.OCRBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.OCRBreakerOpenTimeout
	return rc
}
