package vault

import "context"

type Repository interface {
	Create(ctx context.Context, v *Vault) error
	Save(ctx context.Context, v *Vault) error
	GetByVaultID(ctx context.Context, vaultID string) (*Vault, error)
	// Row-locked read, only meaningful inside a transaction.
	GetByVaultIDForUpdate(ctx context.Context, vaultID string) (*Vault, error)
	// GetActiveByAsset finds an active vault locking the same asset for the
	// same owner (double-pledge guard).
	GetActiveByAsset(ctx context.Context, owner, assetContract string, assetTokenID uint64) (*Vault, error)
}
