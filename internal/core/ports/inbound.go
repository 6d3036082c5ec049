package ports

import (
	"context"
	"io"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

// StatementIngestor is the inbound contract for statement upload orchestration.
type StatementIngestor interface {
	Upload(ctx context.Context, filename, mimeType, processorHint string, body io.Reader) (*domain.StatementRecord, error)
}

// ManualEntryService records statements typed in by a person instead of uploaded.
type ManualEntryService interface {
	CreateManual(ctx context.Context, entry domain.ManualEntry) (*domain.StatementRecord, error)
}

// StatementReader is the inbound read model for statement state.
type StatementReader interface {
	GetByID(ctx context.Context, id string) (*domain.StatementRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.StatementRecord, error)
}

// StatementProcessor runs the extraction pipeline for a stored statement.
// The bool reports whether the record reached COMPLETED.
type StatementProcessor interface {
	ProcessByID(ctx context.Context, statementID string) (bool, error)
}

// StatementReviewer clears the review flag after a person has checked the numbers.
type StatementReviewer interface {
	MarkReviewed(ctx context.Context, statementID string) (*domain.StatementRecord, error)
}

// DocumentExtractor runs detection and parsing over an in-memory document. The
// error is reserved for documents no parser accepts; every other problem is
// reported inside the result.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc *domain.Document, processorHint string) (domain.ExtractionResult, error)
}
