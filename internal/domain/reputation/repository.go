package reputation

import "context"

type Repository interface {
	Create(ctx context.Context, r *Record) error
	Save(ctx context.Context, r *Record) error
	GetByBorrower(ctx context.Context, borrower string) (*Record, error)
	// Row-locked read, only meaningful inside a transaction.
	GetByBorrowerForUpdate(ctx context.Context, borrower string) (*Record, error)
}
