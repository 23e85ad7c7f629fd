package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	vaultDomain "vaultshield/internal/domain/vault"
)

type VaultRepository struct{ db *gorm.DB }

func NewVaultRepository(db *gorm.DB) *VaultRepository { return &VaultRepository{db: db} }

func (r *VaultRepository) Create(ctx context.Context, v *vaultDomain.Vault) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *VaultRepository) Save(ctx context.Context, v *vaultDomain.Vault) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *VaultRepository) GetByVaultID(ctx context.Context, vaultID string) (*vaultDomain.Vault, error) {
	var out vaultDomain.Vault
	res := r.db.WithContext(ctx).Where("vault_id = ?", vaultID).First(&out)
	return &out, res.Error
}

func (r *VaultRepository) GetByVaultIDForUpdate(ctx context.Context, vaultID string) (*vaultDomain.Vault, error) {
	var out vaultDomain.Vault
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("vault_id = ?", vaultID).
		First(&out)
	return &out, res.Error
}

func (r *VaultRepository) GetActiveByAsset(ctx context.Context, owner, assetContract string, assetTokenID uint64) (*vaultDomain.Vault, error) {
	var out vaultDomain.Vault
	res := r.db.WithContext(ctx).
		Where("owner = ? AND asset_contract = ? AND asset_token_id = ? AND status = ?",
			owner, assetContract, assetTokenID, vaultDomain.StatusActive).
		First(&out)
	return &out, res.Error
}
