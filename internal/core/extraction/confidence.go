package extraction

import (
	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

const (
	weightMerchant     = 20
	weightPeriodFull   = 20
	weightPeriodSingle = 10
	weightVolumes      = 30
	weightFees         = 20
	weightTotalVolume  = 10
	maxConfidence      = 100
)

// Score turns field coverage into a 0-100 confidence. A failed result scores 0.
func Score(res domain.ExtractionResult) decimal.Decimal {
	if res.Failed() {
		return decimal.Zero
	}

	score := 0
	if res.MerchantName != "" {
		score += weightMerchant
	}
	switch res.StatementPeriod.Bounds() {
	case 2:
		score += weightPeriodFull
	case 1:
		score += weightPeriodSingle
	}
	if res.HasVolume() {
		score += weightVolumes
	}
	if res.HasFees() {
		score += weightFees
	}
	if res.Totals.TotalVolume.IsPositive() {
		score += weightTotalVolume
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return decimal.NewFromInt(int64(score))
}
