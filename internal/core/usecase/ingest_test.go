package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := newStatementRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestStatementUseCase(repo, storage, queue)

	rec, err := uc.Upload(context.Background(), "June statement.pdf", "application/octet-stream", " Chase Paymentech ", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if rec.Status != domain.StatusPending || rec.Source != domain.SourceUpload {
		t.Fatalf("unexpected record state: status=%s source=%s", rec.Status, rec.Source)
	}
	if rec.MimeType != "application/pdf" {
		t.Fatalf("expected pdf mime type, got %q", rec.MimeType)
	}
	if rec.FileSize != 8 {
		t.Fatalf("expected file size 8, got %d", rec.FileSize)
	}
	if rec.ProcessorHint != "Chase Paymentech" {
		t.Fatalf("expected trimmed hint, got %q", rec.ProcessorHint)
	}
	if !strings.HasSuffix(rec.StoragePath, "_June_statement.pdf") {
		t.Fatalf("unexpected storage key %q", rec.StoragePath)
	}
	if got := string(storage.files[rec.StoragePath]); got != "%PDF-1.4" {
		t.Fatalf("stored bytes = %q", got)
	}
	if len(queue.published) != 1 || queue.published[0] != rec.ID {
		t.Fatalf("expected one event for %s, got %v", rec.ID, queue.published)
	}

	stored, err := repo.GetByID(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected pending record, got %s", stored.Status)
	}
}

func TestIngestUploadAcceptsXLSXByMimeType(t *testing.T) {
	const xlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	uc := NewIngestStatementUseCase(newStatementRepoFake(), newStorageFake(), &queueFake{})

	rec, err := uc.Upload(context.Background(), "export", xlsx, "", strings.NewReader("PK"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if rec.MimeType != xlsx {
		t.Fatalf("expected xlsx mime type, got %q", rec.MimeType)
	}
}

func TestIngestUploadRejectsUnsupportedType(t *testing.T) {
	queue := &queueFake{}
	uc := NewIngestStatementUseCase(newStatementRepoFake(), newStorageFake(), queue)

	_, err := uc.Upload(context.Background(), "notes.txt", "text/plain", "", strings.NewReader("hello"))
	if !domain.IsKind(err, domain.ErrUnsupportedDocument) {
		t.Fatalf("expected unsupported document error, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("expected no events, got %v", queue.published)
	}
}

func TestIngestUploadRejectsEmptyFileWithoutStoringIt(t *testing.T) {
	repo := newStatementRepoFake()
	storage := newStorageFake()
	uc := NewIngestStatementUseCase(repo, storage, &queueFake{})

	_, err := uc.Upload(context.Background(), "statement.pdf", "", "", strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Fatalf("expected no records, got %d", len(repo.records))
	}
	if len(storage.files) != 0 {
		t.Fatalf("expected nothing stored, got %d files", len(storage.files))
	}
}

func TestIngestUploadPropagatesFailures(t *testing.T) {
	uc := NewIngestStatementUseCase(newStatementRepoFake(), &storageFake{saveErr: errors.New("disk full")}, &queueFake{})
	_, err := uc.Upload(context.Background(), "statement.pdf", "", "", strings.NewReader("%PDF"))
	if err == nil || !strings.Contains(err.Error(), "save to object storage") {
		t.Fatalf("expected storage error, got %v", err)
	}

	uc = NewIngestStatementUseCase(newStatementRepoFake(), newStorageFake(), &queueFake{err: errors.New("nats down")})
	_, err = uc.Upload(context.Background(), "statement.pdf", "", "", strings.NewReader("%PDF"))
	if err == nil || !strings.Contains(err.Error(), "publish submission event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../my file?.pdf": "my_file_.pdf",
		"":                "statement.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
