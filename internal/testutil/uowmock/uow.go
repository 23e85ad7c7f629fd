package uowmock

import (
	"context"
	"errors"

	"vaultshield/internal/domain/loan"
	"vaultshield/internal/domain/uow"
	"vaultshield/internal/domain/vault"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn      func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn  func(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error
	WithinVaultTxFn func(ctx context.Context, vaultID string, fn func(r uow.Repos, v *vault.Vault) error) error
}

func New() *UoW { return &UoW{} }

// Wired returns a passthrough UoW over the given repos: WithinTx runs fn
// directly, and the row-locked variants load the entity through the repos'
// ForUpdate methods. There is no real transaction; tests that only care
// about the state machine use this.
func Wired(r uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(ctx context.Context, fn func(r uow.Repos) error) error {
			return fn(r)
		},
		WithinLoanTxFn: func(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
			l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
			if err != nil {
				return err
			}
			return fn(r, l)
		},
		WithinVaultTxFn: func(ctx context.Context, vaultID string, fn func(r uow.Repos, v *vault.Vault) error) error {
			v, err := r.Vaults.GetByVaultIDForUpdate(ctx, vaultID)
			if err != nil {
				return err
			}
			return fn(r, v)
		},
	}
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinVaultTx(ctx context.Context, vaultID string, fn func(r uow.Repos, v *vault.Vault) error) error {
	if m.WithinVaultTxFn != nil {
		return m.WithinVaultTxFn(ctx, vaultID, fn)
	}
	return errUnimplemented
}
