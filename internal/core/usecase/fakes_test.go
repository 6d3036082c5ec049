package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

type statementRepoFake struct {
	mu        sync.Mutex
	records   map[string]*domain.StatementRecord
	statuses  []domain.StatementStatus
	failed    map[string]string
	outcomes  map[string]domain.StatementOutcome
	reviewed  []string
	createErr error
	saveErr   error
}

func newStatementRepoFake(records ...*domain.StatementRecord) *statementRepoFake {
	f := &statementRepoFake{
		records:  map[string]*domain.StatementRecord{},
		failed:   map[string]string{},
		outcomes: map[string]domain.StatementOutcome{},
	}
	for _, rec := range records {
		f.records[rec.ID] = rec
	}
	return f
}

func (f *statementRepoFake) Create(_ context.Context, rec *domain.StatementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyRec := *rec
	f.records[rec.ID] = &copyRec
	return nil
}

func (f *statementRepoFake) GetByID(_ context.Context, id string) (*domain.StatementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrStatementNotFound, "get statement", errors.New(id))
	}
	copyRec := *rec
	return &copyRec, nil
}

func (f *statementRepoFake) List(_ context.Context, limit, offset int) ([]domain.StatementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.StatementRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *statementRepoFake) UpdateStatus(_ context.Context, id string, status domain.StatementStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrStatementNotFound
	}
	rec.Status = status
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *statementRepoFake) MarkFailed(_ context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrStatementNotFound
	}
	rec.Status = domain.StatusFailed
	rec.Notes = reason
	f.statuses = append(f.statuses, domain.StatusFailed)
	f.failed[id] = reason
	return nil
}

func (f *statementRepoFake) SaveOutcome(_ context.Context, id string, outcome domain.StatementOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrStatementNotFound
	}
	result := outcome.Result
	rec.Status = domain.StatusCompleted
	rec.Result = &result
	rec.Confidence = result.Confidence
	rec.RequiresReview = outcome.RequiresReview
	rec.EffectiveRate = outcome.EffectiveRate
	rec.Notes = outcome.Notes
	f.statuses = append(f.statuses, domain.StatusCompleted)
	f.outcomes[id] = outcome
	return nil
}

func (f *statementRepoFake) MarkReviewed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrStatementNotFound
	}
	rec.RequiresReview = false
	f.reviewed = append(f.reviewed, id)
	return nil
}

type storageFake struct {
	files   map[string][]byte
	saveErr error
	openErr error
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.files[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrStatementNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishStatementSubmitted(_ context.Context, statementID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, statementID)
	return nil
}

func (f *queueFake) SubscribeStatementSubmitted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type loaderFake struct {
	doc *domain.Document
	err error
}

func (f loaderFake) Load(_ context.Context, filename, mimeType string, data []byte) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Filename = filename
	doc.MimeType = mimeType
	doc.Raw = data
	return &doc, nil
}

type extractorFake struct {
	result  domain.ExtractionResult
	err     error
	gotHint string
}

func (f *extractorFake) Extract(_ context.Context, _ *domain.Document, hint string) (domain.ExtractionResult, error) {
	f.gotHint = hint
	return f.result, f.err
}

type recorderFake struct {
	completed []string
	failed    []string
}

func (f *recorderFake) RecordExtraction(result domain.ExtractionResult, completed bool) {
	if completed {
		f.completed = append(f.completed, result.ProcessorName)
		return
	}
	f.failed = append(f.failed, result.ProcessorName)
}
