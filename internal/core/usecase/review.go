package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/merchant-statements/internal/core/domain"
	"github.com/kirillkom/merchant-statements/internal/core/ports"
)

var errMissingID = errors.New("statement id is required")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// StatementQueryUseCase serves reads and the human review step.
type StatementQueryUseCase struct {
	repo ports.StatementRepository
}

func NewStatementQueryUseCase(repo ports.StatementRepository) *StatementQueryUseCase {
	return &StatementQueryUseCase{repo: repo}
}

func (uc *StatementQueryUseCase) GetByID(ctx context.Context, id string) (*domain.StatementRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get statement", errMissingID)
	}
	rec, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch statement by id: %w", err)
	}
	return rec, nil
}

func (uc *StatementQueryUseCase) List(ctx context.Context, limit, offset int) ([]domain.StatementRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	recs, err := uc.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	return recs, nil
}

// MarkReviewed clears requires_review. Only COMPLETED records carry numbers worth reviewing.
func (uc *StatementQueryUseCase) MarkReviewed(ctx context.Context, id string) (*domain.StatementRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review statement", errMissingID)
	}
	rec, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch statement by id: %w", err)
	}
	if rec.Status != domain.StatusCompleted {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"review statement",
			fmt.Errorf("statement is %s, only %s statements can be reviewed", rec.Status, domain.StatusCompleted),
		)
	}
	if !rec.RequiresReview {
		return rec, nil
	}
	if err := uc.repo.MarkReviewed(ctx, id); err != nil {
		return nil, fmt.Errorf("mark reviewed: %w", err)
	}
	rec.RequiresReview = false
	return rec, nil
}
