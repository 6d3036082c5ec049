package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

var statementColumns = []string{
	"id", "source", "filename", "mime_type", "file_size", "storage_path", "processor_hint", "status",
	"result", "confidence", "requires_review", "effective_rate", "extraction_notes", "created_at", "updated_at", "processed_at",
}

func newRepoWithMock(t *testing.T) (*StatementRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewStatementRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, source, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStatementNotFound) {
		t.Fatalf("expected ErrStatementNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesResult(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	result := domain.NewExtractionResult("Chase Paymentech")
	result.MerchantName = "ACME WIDGETS INC"
	result.Totals.TotalVolume = decimal.RequireFromString("146718.43")
	resultJSON, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	created := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, source, filename").
		WithArgs("st-1").
		WillReturnRows(sqlmock.NewRows(statementColumns).AddRow(
			"st-1", "UPLOAD", "june.pdf", "application/pdf", int64(2048), "st-1_june.pdf", "", "COMPLETED",
			resultJSON, "70", true, "2.1500", "totals line not found", created, created, created,
		))

	rec, err := repo.GetByID(context.Background(), "st-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.Status != domain.StatusCompleted || rec.Source != domain.SourceUpload {
		t.Fatalf("unexpected status/source: %s/%s", rec.Status, rec.Source)
	}
	if rec.Result == nil || rec.Result.MerchantName != "ACME WIDGETS INC" {
		t.Fatalf("unexpected result: %+v", rec.Result)
	}
	if !rec.Result.Totals.TotalVolume.Equal(decimal.RequireFromString("146718.43")) {
		t.Fatalf("unexpected total volume: %s", rec.Result.Totals.TotalVolume)
	}
	if !rec.Confidence.Equal(decimal.NewFromInt(70)) || !rec.RequiresReview {
		t.Fatalf("unexpected confidence/review: %s/%v", rec.Confidence, rec.RequiresReview)
	}
	if rec.EffectiveRate == nil || rec.EffectiveRate.String() != "2.15" {
		t.Fatalf("unexpected effective rate: %v", rec.EffectiveRate)
	}
	if rec.ProcessedAt == nil {
		t.Fatalf("expected processed_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE statements").
		WithArgs("missing", string(domain.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStatementNotFound) {
		t.Fatalf("expected ErrStatementNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkFailedStoresReason(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE statements").
		WithArgs("st-1", string(domain.StatusFailed), "Clover statements are not supported yet", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "st-1", "Clover statements are not supported yet"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveOutcomeCompletesRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	result := domain.NewExtractionResult("Chase Paymentech")
	result.Confidence = decimal.NewFromInt(90)
	rate := decimal.RequireFromString("2.5")
	processed := time.Date(2024, 7, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE statements").
		WithArgs(
			"st-1", string(domain.StatusCompleted),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			false, sqlmock.AnyArg(), "", processed, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveOutcome(context.Background(), "st-1", domain.StatementOutcome{
		Result:         result,
		RequiresReview: false,
		EffectiveRate:  &rate,
		ProcessedAt:    processed,
	})
	if err != nil {
		t.Fatalf("SaveOutcome() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkReviewedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE statements").
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkReviewed(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrStatementNotFound) {
		t.Fatalf("expected ErrStatementNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
