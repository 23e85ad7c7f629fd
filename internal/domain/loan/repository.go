package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	Save(ctx context.Context, l *Loan) error
	// HardDelete removes a tentative (requested) row after a ledger
	// rejection. Confirmed loans are never deleted.
	HardDelete(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// Row-locked read, only meaningful inside a transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	// GetOpenByVaultID returns the single non-terminal loan on a vault.
	GetOpenByVaultID(ctx context.Context, vaultID string) (*Loan, error)
}
