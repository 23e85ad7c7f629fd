package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	repDomain "vaultshield/internal/domain/reputation"
)

type ReputationRepository struct{ db *gorm.DB }

func NewReputationRepository(db *gorm.DB) *ReputationRepository {
	return &ReputationRepository{db: db}
}

func (r *ReputationRepository) Create(ctx context.Context, rec *repDomain.Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ReputationRepository) Save(ctx context.Context, rec *repDomain.Record) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *ReputationRepository) GetByBorrower(ctx context.Context, borrower string) (*repDomain.Record, error) {
	var out repDomain.Record
	res := r.db.WithContext(ctx).Where("borrower = ?", borrower).First(&out)
	return &out, res.Error
}

func (r *ReputationRepository) GetByBorrowerForUpdate(ctx context.Context, borrower string) (*repDomain.Record, error) {
	var out repDomain.Record
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("borrower = ?", borrower).
		First(&out)
	return &out, res.Error
}
