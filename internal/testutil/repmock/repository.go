package repmock

import (
	"context"

	"gorm.io/gorm"

	domain "vaultshield/internal/domain/reputation"
)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn                 func(ctx context.Context, r *domain.Record) error
	SaveFn                   func(ctx context.Context, r *domain.Record) error
	GetByBorrowerFn          func(ctx context.Context, borrower string) (*domain.Record, error)
	GetByBorrowerForUpdateFn func(ctx context.Context, borrower string) (*domain.Record, error)
}

var _ domain.Repository = (*Repo)(nil)

func (m *Repo) Create(ctx context.Context, r *domain.Record) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, r *domain.Record) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, r)
	}
	return nil
}

func (m *Repo) GetByBorrower(ctx context.Context, borrower string) (*domain.Record, error) {
	if m.GetByBorrowerFn != nil {
		return m.GetByBorrowerFn(ctx, borrower)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Repo) GetByBorrowerForUpdate(ctx context.Context, borrower string) (*domain.Record, error) {
	if m.GetByBorrowerForUpdateFn != nil {
		return m.GetByBorrowerForUpdateFn(ctx, borrower)
	}
	return nil, gorm.ErrRecordNotFound
}
