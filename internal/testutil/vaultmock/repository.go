package vaultmock

import (
	"context"

	"gorm.io/gorm"

	domain "vaultshield/internal/domain/vault"
)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn                func(ctx context.Context, v *domain.Vault) error
	SaveFn                  func(ctx context.Context, v *domain.Vault) error
	GetByVaultIDFn          func(ctx context.Context, vaultID string) (*domain.Vault, error)
	GetByVaultIDForUpdateFn func(ctx context.Context, vaultID string) (*domain.Vault, error)
	GetActiveByAssetFn      func(ctx context.Context, owner, assetContract string, assetTokenID uint64) (*domain.Vault, error)
}

var _ domain.Repository = (*Repo)(nil)

func (m *Repo) Create(ctx context.Context, v *domain.Vault) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, v)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, v *domain.Vault) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, v)
	}
	return nil
}

func (m *Repo) GetByVaultID(ctx context.Context, vaultID string) (*domain.Vault, error) {
	if m.GetByVaultIDFn != nil {
		return m.GetByVaultIDFn(ctx, vaultID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Repo) GetByVaultIDForUpdate(ctx context.Context, vaultID string) (*domain.Vault, error) {
	if m.GetByVaultIDForUpdateFn != nil {
		return m.GetByVaultIDForUpdateFn(ctx, vaultID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Repo) GetActiveByAsset(ctx context.Context, owner, assetContract string, assetTokenID uint64) (*domain.Vault, error) {
	if m.GetActiveByAssetFn != nil {
		return m.GetActiveByAssetFn(ctx, owner, assetContract, assetTokenID)
	}
	return nil, gorm.ErrRecordNotFound
}
