package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

const maxMerchantNameLen = 255

var manualConfidence = decimal.NewFromInt(100)

type ManualEntryUseCase struct {
	repo ports.StatementRepository
	now  func() time.Time
}

func NewManualEntryUseCase(repo ports.StatementRepository) *ManualEntryUseCase {
	return &ManualEntryUseCase{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateManual stores a COMPLETED record at full confidence; a person already vouched for it.
func (uc *ManualEntryUseCase) CreateManual(ctx context.Context, entry domain.ManualEntry) (*domain.StatementRecord, error) {
	if err := validateManualEntry(entry); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create manual statement", err)
	}

	result := domain.NewExtractionResult(strings.TrimSpace(entry.ProcessorName))
	result.MerchantName = strings.TrimSpace(entry.MerchantName)
	start, end := entry.PeriodStart.UTC(), entry.PeriodEnd.UTC()
	result.StatementPeriod = domain.StatementPeriod{Start: &start, End: &end}
	result.Fees[domain.FeeInterchange] = entry.InterchangeFees
	result.Fees[domain.FeeProcessing] = entry.ProcessingFees
	result.Fees[domain.FeeMonthly] = entry.MonthlyFees
	result.Fees[domain.FeeOther] = entry.OtherFees
	result.Totals = domain.Totals{
		TotalVolume:      entry.TotalVolume,
		TransactionCount: entry.TransactionCount,
		TotalFees:        decimal.Sum(entry.InterchangeFees, entry.ProcessingFees, entry.MonthlyFees, entry.OtherFees),
	}
	result.Confidence = manualConfidence

	now := uc.now()
	rec := &domain.StatementRecord{
		ID:             uuid.NewString(),
		Source:         domain.SourceManual,
		Status:         domain.StatusCompleted,
		Result:         &result,
		Confidence:     manualConfidence,
		RequiresReview: false,
		CreatedAt:      now,
		UpdatedAt:      now,
		ProcessedAt:    &now,
	}
	if rate, ok := result.EffectiveRate(); ok {
		rec.EffectiveRate = &rate
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create manual statement: %w", err)
	}
	return rec, nil
}

func validateManualEntry(entry domain.ManualEntry) error {
	name := strings.TrimSpace(entry.MerchantName)
	switch {
	case name == "":
		return errors.New("merchant_name is required")
	case len(name) > maxMerchantNameLen:
		return fmt.Errorf("merchant_name exceeds %d characters", maxMerchantNameLen)
	case entry.PeriodStart.IsZero() || entry.PeriodEnd.IsZero():
		return errors.New("period_start and period_end are required")
	case entry.PeriodStart.After(entry.PeriodEnd):
		return errors.New("period_end must be after period_start")
	case entry.TransactionCount < 1:
		return errors.New("transaction_count must be at least 1")
	case entry.TotalVolume.IsNegative():
		return errors.New("total_volume must not be negative")
	}
	fees := []struct {
		name  string
		value decimal.Decimal
	}{
		{"interchange_fees", entry.InterchangeFees},
		{"processing_fees", entry.ProcessingFees},
		{"monthly_fees", entry.MonthlyFees},
		{"other_fees", entry.OtherFees},
	}
	for _, fee := range fees {
		if fee.value.IsNegative() {
			return fmt.Errorf("%s must not be negative", fee.name)
		}
	}
	return nil
}
