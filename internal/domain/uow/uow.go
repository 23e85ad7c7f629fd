package uow

import (
	"context"

	"vaultshield/internal/domain/loan"
	"vaultshield/internal/domain/reputation"
	"vaultshield/internal/domain/vault"
)

type Repos struct {
	Vaults     vault.Repository
	Loans      loan.Repository
	Reputation reputation.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock the loan row first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
	// convenience: lock the vault row first, then pass it in
	WithinVaultTx(ctx context.Context, vaultID string, fn func(r Repos, v *vault.Vault) error) error
}
