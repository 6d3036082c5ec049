package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/merchant-statements/internal/core/detector"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

// ExtractStatementUseCase is the pure pipeline: document in, result out. It
// touches no storage, so the CLI and MCP server run it directly.
type ExtractStatementUseCase struct {
	registry *detector.Registry
	logger   *slog.Logger
}

func NewExtractStatementUseCase(registry *detector.Registry, logger *slog.Logger) *ExtractStatementUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStatementUseCase{
		registry: registry,
		logger:   logger,
	}
}

func (uc *ExtractStatementUseCase) Extract(ctx context.Context, doc *domain.Document, processorHint string) (domain.ExtractionResult, error) {
	parser, err := uc.registry.Resolve(doc, processorHint)
	if err != nil {
		uc.logger.Info("statement rejected", "operation", "detect_processor", "filename", doc.Filename, "error", err)
		return domain.ExtractionResult{}, err
	}

	res := parser.Extract(ctx, doc)
	uc.logger.Debug(
		"statement extracted",
		"operation", "extract",
		"filename", doc.Filename,
		"processor", res.ProcessorName,
		"confidence", res.Confidence.String(),
		"diagnostics", len(res.Diagnostics),
	)
	return res, nil
}
