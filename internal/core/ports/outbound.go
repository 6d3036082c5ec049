package ports

import (
	"context"
	"io"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

// StatementRepository persists and reads statement records.
type StatementRepository interface {
	Create(ctx context.Context, rec *domain.StatementRecord) error
	GetByID(ctx context.Context, id string) (*domain.StatementRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.StatementRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.StatementStatus) error
	// MarkFailed moves a record to FAILED with confidence 0 and reason as its notes.
	MarkFailed(ctx context.Context, id string, reason string) error
	// SaveOutcome persists the extraction and moves the record to COMPLETED.
	SaveOutcome(ctx context.Context, id string, outcome domain.StatementOutcome) error
	MarkReviewed(ctx context.Context, id string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes statement submission events.
type MessageQueue interface {
	PublishStatementSubmitted(ctx context.Context, statementID string) error
	SubscribeStatementSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// DocumentLoader turns raw file bytes into per-page text and tables.
type DocumentLoader interface {
	Load(ctx context.Context, filename, mimeType string, data []byte) (*domain.Document, error)
}

// TextRecognizer is the secondary, render-based text source (OCR).
type TextRecognizer interface {
	Available(ctx context.Context) bool
	RenderText(ctx context.Context, doc *domain.Document) (string, error)
}

// StatementParser extracts a structured result for one processor layout.
type StatementParser interface {
	Name() string
	Extract(ctx context.Context, doc *domain.Document) domain.ExtractionResult
}

// ExtractionRecorder observes finished extractions (metrics).
type ExtractionRecorder interface {
	RecordExtraction(result domain.ExtractionResult, completed bool)
}
