package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

// Statement documents the pipeline can load, keyed by extension.
var supportedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type IngestStatementUseCase struct {
	repo    ports.StatementRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestStatementUseCase(
	repo ports.StatementRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestStatementUseCase {
	return &IngestStatementUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestStatementUseCase) Upload(
	ctx context.Context,
	filename, mimeType, processorHint string,
	body io.Reader,
) (*domain.StatementRecord, error) {
	mimeType, err := resolveMimeType(filename, mimeType)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	buffered := bufio.NewReader(body)
	if _, err := buffered.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload statement", errors.New("empty file"))
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}

	counter := &countingReader{r: buffered}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	rec := &domain.StatementRecord{
		ID:            id,
		Source:        domain.SourceUpload,
		Filename:      filename,
		MimeType:      mimeType,
		FileSize:      counter.n,
		StoragePath:   storageKey,
		ProcessorHint: strings.TrimSpace(processorHint),
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create statement record: %w", err)
	}

	if err := uc.queue.PublishStatementSubmitted(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}

	return rec, nil
}

// resolveMimeType trusts the extension over the client-supplied content type,
// which browsers often send as application/octet-stream.
func resolveMimeType(filename, mimeType string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if canonical, ok := supportedExtensions[ext]; ok {
		return canonical, nil
	}
	for _, canonical := range supportedExtensions {
		if strings.EqualFold(strings.TrimSpace(mimeType), canonical) {
			return canonical, nil
		}
	}
	return "", domain.WrapError(
		domain.ErrUnsupportedDocument,
		"upload statement",
		fmt.Errorf("file type %q (%s) is not a PDF or XLSX statement", ext, mimeType),
	)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "statement.bin"
	}
	return base
}
