package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StatementStatus string

const (
	StatusPending    StatementStatus = "PENDING"
	StatusProcessing StatementStatus = "PROCESSING"
	StatusCompleted  StatementStatus = "COMPLETED"
	StatusFailed     StatementStatus = "FAILED"
)

func (s StatementStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type StatementSource string

const (
	SourceUpload StatementSource = "UPLOAD"
	SourceManual StatementSource = "MANUAL"
)

// StatementRecord wraps one submitted document and, once processed, its extraction.
type StatementRecord struct {
	ID             string            `json:"id"`
	Source         StatementSource   `json:"source"`
	Filename       string            `json:"filename"`
	MimeType       string            `json:"mime_type"`
	FileSize       int64             `json:"file_size"`
	StoragePath    string            `json:"storage_path"`
	ProcessorHint  string            `json:"processor_hint,omitempty"`
	Status         StatementStatus   `json:"status"`
	Result         *ExtractionResult `json:"result,omitempty"`
	Confidence     decimal.Decimal   `json:"confidence"`
	RequiresReview bool              `json:"requires_review"`
	EffectiveRate  *decimal.Decimal  `json:"effective_rate,omitempty"`
	Notes          string            `json:"extraction_notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	ProcessedAt    *time.Time        `json:"processed_at,omitempty"`
}

// StatementOutcome is what the orchestrator persists when a record reaches COMPLETED.
type StatementOutcome struct {
	Result         ExtractionResult
	RequiresReview bool
	EffectiveRate  *decimal.Decimal
	Notes          string
	ProcessedAt    time.Time
}

// ManualEntry is a statement typed in by a person instead of extracted from a document.
type ManualEntry struct {
	MerchantName     string
	ProcessorName    string
	PeriodStart      time.Time
	PeriodEnd        time.Time
	TotalVolume      decimal.Decimal
	TransactionCount int
	InterchangeFees  decimal.Decimal
	ProcessingFees   decimal.Decimal
	MonthlyFees      decimal.Decimal
	OtherFees        decimal.Decimal
}
