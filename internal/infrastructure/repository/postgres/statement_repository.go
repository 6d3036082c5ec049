package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

type StatementRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StatementRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS statements (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	processor_hint TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	processor_name TEXT,
	merchant_name TEXT,
	period_start DATE,
	period_end DATE,
	total_volume NUMERIC(15,2),
	transaction_count INTEGER,
	total_fees NUMERIC(12,2),
	result JSONB,
	confidence NUMERIC(5,2) NOT NULL DEFAULT 0,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	effective_rate NUMERIC(9,4),
	extraction_notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_statements_status ON statements(status);
CREATE INDEX IF NOT EXISTS idx_statements_review ON statements(requires_review) WHERE requires_review;
CREATE INDEX IF NOT EXISTS idx_statements_created_at ON statements(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const selectStatement = `
SELECT id, source, filename, mime_type, file_size, storage_path, processor_hint, status,
	result, confidence, requires_review, effective_rate, extraction_notes, created_at, updated_at, processed_at
FROM statements`

func (r *StatementRepository) Create(ctx context.Context, rec *domain.StatementRecord) error {
	resultJSON, summary, err := encodeResult(rec.Result)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO statements (
	id, source, filename, mime_type, file_size, storage_path, processor_hint, status,
	processor_name, merchant_name, period_start, period_end, total_volume, transaction_count, total_fees,
	result, confidence, requires_review, effective_rate, extraction_notes, created_at, updated_at, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
`,
		rec.ID, string(rec.Source), rec.Filename, rec.MimeType, rec.FileSize, rec.StoragePath, rec.ProcessorHint, string(rec.Status),
		summary.processor, summary.merchant, summary.start, summary.end, summary.volume, summary.count, summary.fees,
		resultJSON, rec.Confidence, rec.RequiresReview, nullDecimal(rec.EffectiveRate), rec.Notes, rec.CreatedAt, rec.UpdatedAt, rec.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert statement: %w", err)
	}
	return nil
}

func (r *StatementRepository) GetByID(ctx context.Context, id string) (*domain.StatementRecord, error) {
	row := r.db.QueryRowContext(ctx, selectStatement+`
WHERE id = $1
`, id)

	rec, err := scanStatement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrStatementNotFound, "get statement", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return rec, nil
}

func (r *StatementRepository) List(ctx context.Context, limit, offset int) ([]domain.StatementRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectStatement+`
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StatementRecord, 0, limit)
	for rows.Next() {
		rec, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statements: %w", err)
	}
	return out, nil
}

func (r *StatementRepository) UpdateStatus(ctx context.Context, id string, status domain.StatementStatus) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE statements
SET status = $2, updated_at = $3
WHERE id = $1
`, id, string(status), r.now())
	if err != nil {
		return fmt.Errorf("update statement status: %w", err)
	}
	return expectAffected(res, "update statement status", id)
}

func (r *StatementRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
UPDATE statements
SET status = $2, extraction_notes = $3, confidence = 0, requires_review = FALSE,
	effective_rate = NULL, updated_at = $4, processed_at = $4
WHERE id = $1
`, id, string(domain.StatusFailed), reason, now)
	if err != nil {
		return fmt.Errorf("mark statement failed: %w", err)
	}
	return expectAffected(res, "mark statement failed", id)
}

func (r *StatementRepository) SaveOutcome(ctx context.Context, id string, outcome domain.StatementOutcome) error {
	resultJSON, summary, err := encodeResult(&outcome.Result)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE statements
SET status = $2, processor_name = $3, merchant_name = $4, period_start = $5, period_end = $6,
	total_volume = $7, transaction_count = $8, total_fees = $9, result = $10, confidence = $11,
	requires_review = $12, effective_rate = $13, extraction_notes = $14, processed_at = $15, updated_at = $16
WHERE id = $1
`,
		id, string(domain.StatusCompleted), summary.processor, summary.merchant, summary.start, summary.end,
		summary.volume, summary.count, summary.fees, resultJSON, outcome.Result.Confidence,
		outcome.RequiresReview, nullDecimal(outcome.EffectiveRate), outcome.Notes, outcome.ProcessedAt, r.now(),
	)
	if err != nil {
		return fmt.Errorf("save statement outcome: %w", err)
	}
	return expectAffected(res, "save statement outcome", id)
}

func (r *StatementRepository) MarkReviewed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE statements
SET requires_review = FALSE, updated_at = $2
WHERE id = $1
`, id, r.now())
	if err != nil {
		return fmt.Errorf("mark statement reviewed: %w", err)
	}
	return expectAffected(res, "mark statement reviewed", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*domain.StatementRecord, error) {
	var rec domain.StatementRecord
	var source, status string
	var resultRaw []byte
	var rate decimal.NullDecimal
	var processedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &source, &rec.Filename, &rec.MimeType, &rec.FileSize, &rec.StoragePath, &rec.ProcessorHint, &status,
		&resultRaw, &rec.Confidence, &rec.RequiresReview, &rate, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt, &processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan statement: %w", err)
	}

	rec.Source = domain.StatementSource(source)
	rec.Status = domain.StatementStatus(status)
	if len(resultRaw) > 0 {
		var result domain.ExtractionResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return nil, fmt.Errorf("unmarshal statement result: %w", err)
		}
		rec.Result = &result
	}
	if rate.Valid {
		rec.EffectiveRate = &rate.Decimal
	}
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	return &rec, nil
}

// resultSummary holds the columns denormalized from the result for reporting queries.
type resultSummary struct {
	processor sql.NullString
	merchant  sql.NullString
	start     sql.NullTime
	end       sql.NullTime
	volume    decimal.NullDecimal
	count     sql.NullInt64
	fees      decimal.NullDecimal
}

func encodeResult(result *domain.ExtractionResult) ([]byte, resultSummary, error) {
	if result == nil {
		return nil, resultSummary{}, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, resultSummary{}, fmt.Errorf("marshal statement result: %w", err)
	}

	summary := resultSummary{
		processor: sql.NullString{String: result.ProcessorName, Valid: true},
		merchant:  sql.NullString{String: result.MerchantName, Valid: result.MerchantName != ""},
		volume:    decimal.NewNullDecimal(result.Totals.TotalVolume),
		count:     sql.NullInt64{Int64: int64(result.Totals.TransactionCount), Valid: true},
		fees:      decimal.NewNullDecimal(result.Totals.TotalFees),
	}
	if result.StatementPeriod.Start != nil {
		summary.start = sql.NullTime{Time: *result.StatementPeriod.Start, Valid: true}
	}
	if result.StatementPeriod.End != nil {
		summary.end = sql.NullTime{Time: *result.StatementPeriod.End, Valid: true}
	}
	return raw, summary, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func expectAffected(res sql.Result, operation, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrStatementNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
