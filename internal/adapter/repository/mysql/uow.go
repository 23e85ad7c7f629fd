package mysql

import (
	"context"

	"gorm.io/gorm"

	"vaultshield/internal/domain/loan"
	"vaultshield/internal/domain/uow"
	"vaultshield/internal/domain/vault"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) repos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Vaults:     &VaultRepository{db: tx},
		Loans:      &LoanRepository{db: tx},
		Reputation: &ReputationRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(u.repos(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := u.repos(tx)
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

func (u *GormUoW) WithinVaultTx(ctx context.Context, vaultID string, fn func(r uow.Repos, v *vault.Vault) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := u.repos(tx)
		v, err := r.Vaults.GetByVaultIDForUpdate(ctx, vaultID)
		if err != nil {
			return err
		}
		return fn(r, v)
	})
}
