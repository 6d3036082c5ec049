package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
)

func validManualEntry() domain.ManualEntry {
	return domain.ManualEntry{
		MerchantName:     " ACME COFFEE LLC ",
		ProcessorName:    "Chase Paymentech",
		PeriodStart:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:        time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		TotalVolume:      decimal.NewFromInt(10000),
		TransactionCount: 120,
		InterchangeFees:  decimal.NewFromInt(150),
		ProcessingFees:   decimal.NewFromInt(40),
		MonthlyFees:      decimal.NewFromInt(10),
	}
}

func TestCreateManualStatement(t *testing.T) {
	repo := newStatementRepoFake()
	rec, err := NewManualEntryUseCase(repo).CreateManual(context.Background(), validManualEntry())
	if err != nil {
		t.Fatalf("CreateManual() error = %v", err)
	}
	if rec.Source != domain.SourceManual || rec.Status != domain.StatusCompleted {
		t.Fatalf("unexpected record state: source=%s status=%s", rec.Source, rec.Status)
	}
	if rec.RequiresReview || rec.Confidence.String() != "100" {
		t.Fatalf("manual records are trusted: review=%v confidence=%s", rec.RequiresReview, rec.Confidence)
	}
	if rec.Result == nil {
		t.Fatalf("expected result on manual record")
	}
	if rec.Result.MerchantName != "ACME COFFEE LLC" {
		t.Fatalf("merchant name = %q", rec.Result.MerchantName)
	}
	if got := rec.Result.Totals.TotalFees.String(); got != "200" {
		t.Fatalf("total fees = %s, want 200", got)
	}
	if rec.EffectiveRate == nil || rec.EffectiveRate.String() != "2" {
		t.Fatalf("expected effective rate 2, got %v", rec.EffectiveRate)
	}
	if len(rec.Result.CardNetworkVolumes) != len(domain.CardNetworks) {
		t.Fatalf("expected zero-filled networks, got %d", len(rec.Result.CardNetworkVolumes))
	}
	if _, err := repo.GetByID(context.Background(), rec.ID); err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
}

func TestCreateManualStatementValidation(t *testing.T) {
	cases := map[string]func(*domain.ManualEntry){
		"missing merchant":   func(e *domain.ManualEntry) { e.MerchantName = "  " },
		"long merchant":      func(e *domain.ManualEntry) { e.MerchantName = strings.Repeat("A", 256) },
		"missing period":     func(e *domain.ManualEntry) { e.PeriodStart = time.Time{} },
		"inverted period":    func(e *domain.ManualEntry) { e.PeriodStart, e.PeriodEnd = e.PeriodEnd, e.PeriodStart },
		"zero transactions":  func(e *domain.ManualEntry) { e.TransactionCount = 0 },
		"negative volume":    func(e *domain.ManualEntry) { e.TotalVolume = decimal.NewFromInt(-1) },
		"negative other fee": func(e *domain.ManualEntry) { e.OtherFees = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			entry := validManualEntry()
			mutate(&entry)

			repo := newStatementRepoFake()
			_, err := NewManualEntryUseCase(repo).CreateManual(context.Background(), entry)
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
			if len(repo.records) != 0 {
				t.Fatalf("expected no records, got %d", len(repo.records))
			}
		})
	}
}
