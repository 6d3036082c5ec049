package httpadapter

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/config"
	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

type ingestFake struct {
	err      error
	gotHint  string
	gotBytes int
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType, processorHint string, body io.Reader) (*domain.StatementRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.gotHint = processorHint
	f.gotBytes = len(raw)

	now := time.Now().UTC()
	return &domain.StatementRecord{
		ID:            "st-1",
		Source:        domain.SourceUpload,
		Filename:      filename,
		MimeType:      mimeType,
		FileSize:      int64(len(raw)),
		StoragePath:   "st-1_" + filename,
		ProcessorHint: processorHint,
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type manualFake struct {
	got domain.ManualEntry
	err error
}

func (f *manualFake) CreateManual(_ context.Context, entry domain.ManualEntry) (*domain.StatementRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.got = entry
	return &domain.StatementRecord{
		ID:         "st-manual",
		Source:     domain.SourceManual,
		Status:     domain.StatusCompleted,
		Confidence: decimal.NewFromInt(100),
	}, nil
}

type statementsFake struct {
	records   map[string]*domain.StatementRecord
	err       error
	processed []string
	reviewed  []string
	gotLimit  int
}

func newStatementsFake(records ...*domain.StatementRecord) *statementsFake {
	f := &statementsFake{records: map[string]*domain.StatementRecord{}}
	for _, rec := range records {
		f.records[rec.ID] = rec
	}
	return f
}

func (f *statementsFake) GetByID(_ context.Context, id string) (*domain.StatementRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrStatementNotFound, "get statement", io.EOF)
	}
	return rec, nil
}

func (f *statementsFake) List(_ context.Context, limit, _ int) ([]domain.StatementRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.gotLimit = limit
	out := make([]domain.StatementRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *statementsFake) MarkReviewed(ctx context.Context, id string) (*domain.StatementRecord, error) {
	rec, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	f.reviewed = append(f.reviewed, id)
	rec.RequiresReview = false
	return rec, nil
}

func (f *statementsFake) ProcessByID(ctx context.Context, id string) (bool, error) {
	rec, err := f.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	f.processed = append(f.processed, id)
	rec.Status = domain.StatusCompleted
	return true, nil
}

func newTestRouter(cfg config.Config, ingest *ingestFake, manual *manualFake, statements *statementsFake) *Router {
	return NewRouter(cfg, Services{
		Ingest:    ingest,
		Manual:    manual,
		Reader:    statements,
		Reviewer:  statements,
		Processor: statements,
	})
}
