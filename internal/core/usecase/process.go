package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/detector"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

// DefaultReviewThreshold is the confidence below which a person must check the numbers.
var DefaultReviewThreshold = decimal.NewFromInt(80)

type ProcessStatementUseCase struct {
	repo            ports.StatementRepository
	storage         ports.ObjectStorage
	loader          ports.DocumentLoader
	extractor       ports.DocumentExtractor
	recorder        ports.ExtractionRecorder
	reviewThreshold decimal.Decimal
	logger          *slog.Logger
	now             func() time.Time
}

type ProcessOption func(*ProcessStatementUseCase)

func WithReviewThreshold(threshold decimal.Decimal) ProcessOption {
	return func(uc *ProcessStatementUseCase) {
		uc.reviewThreshold = threshold
	}
}

func WithExtractionRecorder(recorder ports.ExtractionRecorder) ProcessOption {
	return func(uc *ProcessStatementUseCase) {
		uc.recorder = recorder
	}
}

func WithProcessLogger(logger *slog.Logger) ProcessOption {
	return func(uc *ProcessStatementUseCase) {
		uc.logger = logger
	}
}

func WithClock(now func() time.Time) ProcessOption {
	return func(uc *ProcessStatementUseCase) {
		uc.now = now
	}
}

func NewProcessStatementUseCase(
	repo ports.StatementRepository,
	storage ports.ObjectStorage,
	loader ports.DocumentLoader,
	extractor ports.DocumentExtractor,
	opts ...ProcessOption,
) *ProcessStatementUseCase {
	uc := &ProcessStatementUseCase{
		repo:            repo,
		storage:         storage,
		loader:          loader,
		extractor:       extractor,
		reviewThreshold: DefaultReviewThreshold,
		logger:          slog.Default(),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ProcessByID drives one record PENDING -> PROCESSING -> COMPLETED | FAILED.
// Rejected and unreadable documents end FAILED with (false, nil); an error is
// returned only when the repository or storage fails.
func (uc *ProcessStatementUseCase) ProcessByID(ctx context.Context, statementID string) (bool, error) {
	rec, err := uc.repo.GetByID(ctx, statementID)
	if err != nil {
		return false, fmt.Errorf("fetch statement by id: %w", err)
	}
	if rec.Source == domain.SourceManual {
		return false, domain.WrapError(domain.ErrInvalidInput, "process statement", errors.New("manual statements have no document to extract"))
	}

	if err := uc.repo.UpdateStatus(ctx, statementID, domain.StatusProcessing); err != nil {
		return false, fmt.Errorf("set status=processing: %w", err)
	}
	log := uc.logger.With("statement_id", statementID)

	doc, err := uc.loadDocument(ctx, rec)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnreadableDocument) || domain.IsKind(err, domain.ErrUnsupportedDocument) {
			return false, uc.fail(ctx, log, statementID, err.Error(), nil)
		}
		if failErr := uc.repo.MarkFailed(ctx, statementID, err.Error()); failErr != nil {
			return false, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return false, err
	}

	result, err := uc.extractor.Extract(ctx, doc, rec.ProcessorHint)
	if err != nil {
		rejected := domain.FailedExtraction(domain.UnknownProcessor, err.Error(), nil)
		if unsupported, ok := detector.AsUnsupported(err); ok {
			rejected = domain.FailedExtraction(unsupported.Processor, unsupported.Reason, nil)
		}
		return false, uc.fail(ctx, log, statementID, rejected.FatalError, &rejected)
	}
	if result.Failed() {
		return false, uc.fail(ctx, log, statementID, result.FatalError, &result)
	}

	outcome := uc.outcome(result)
	if err := uc.repo.SaveOutcome(ctx, statementID, outcome); err != nil {
		if failErr := uc.repo.MarkFailed(ctx, statementID, err.Error()); failErr != nil {
			return false, fmt.Errorf("save outcome: %w; mark failed status: %v", err, failErr)
		}
		return false, fmt.Errorf("save outcome: %w", err)
	}
	uc.record(result, true)

	log.Info(
		"statement processed",
		"operation", "process",
		"processor", result.ProcessorName,
		"confidence", result.Confidence.String(),
		"requires_review", outcome.RequiresReview,
	)
	return true, nil
}

func (uc *ProcessStatementUseCase) loadDocument(ctx context.Context, rec *domain.StatementRecord) (*domain.Document, error) {
	rc, err := uc.storage.Open(ctx, rec.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored statement: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read stored statement: %w", err)
	}

	doc, err := uc.loader.Load(ctx, rec.Filename, rec.MimeType, raw)
	if err != nil {
		return nil, fmt.Errorf("load statement document: %w", err)
	}
	return doc, nil
}

func (uc *ProcessStatementUseCase) outcome(result domain.ExtractionResult) domain.StatementOutcome {
	outcome := domain.StatementOutcome{
		Result:         result,
		RequiresReview: result.Confidence.LessThan(uc.reviewThreshold),
		Notes:          result.Diagnostics.String(),
		ProcessedAt:    uc.now(),
	}
	if rate, ok := result.EffectiveRate(); ok {
		outcome.EffectiveRate = &rate
	}
	return outcome
}

// fail marks the record FAILED for a document-level reason. Only a repository
// error escapes.
func (uc *ProcessStatementUseCase) fail(ctx context.Context, log *slog.Logger, statementID, reason string, result *domain.ExtractionResult) error {
	log.Error("statement failed", "operation", "process", "reason", reason)
	if result != nil {
		uc.record(*result, false)
	} else {
		uc.record(domain.FailedExtraction(domain.UnknownProcessor, reason, nil), false)
	}
	if err := uc.repo.MarkFailed(ctx, statementID, reason); err != nil {
		return fmt.Errorf("mark failed status: %w", err)
	}
	return nil
}

func (uc *ProcessStatementUseCase) record(result domain.ExtractionResult, completed bool) {
	if uc.recorder != nil {
		uc.recorder.RecordExtraction(result, completed)
	}
}
