package vault

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusClosed     Status = "closed"
	StatusLiquidated Status = "liquidated"
)

// Terminal vaults are retained as immutable historical records.
func (s Status) Terminal() bool { return s == StatusClosed || s == StatusLiquidated }

var (
	ErrNotFound            = errors.New("vault not found")
	ErrNotOwner            = errors.New("caller is not the vault owner")
	ErrNotActive           = errors.New("vault is not active")
	ErrHasActiveLoan       = errors.New("vault has an active loan")
	ErrDuplicateCollateral = errors.New("asset already locked in an active vault")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Vault is one locked collateral position. The on-chain value stays sealed;
// EstimatedValue is the local plaintext mirror seeded from the oracle and is
// the only figure risk math ever sees.
type Vault struct {
	ID              uint64         `gorm:"primaryKey;column:id" json:"-"`
	VaultID         string         `gorm:"size:32;uniqueIndex:ux_vaults_vault_id" json:"vault_id"`
	Owner           string         `gorm:"size:42;index:idx_vaults_owner" json:"owner"`
	AssetContract   string         `gorm:"size:42;index:idx_vaults_asset" json:"asset_contract"`
	AssetTokenID    uint64         `gorm:"index:idx_vaults_asset" json:"asset_token_id"`
	SealedValue     []byte         `gorm:"type:blob" json:"-"`
	ValueProof      []byte         `gorm:"type:blob" json:"-"`
	EstimatedValue  float64        `gorm:"type:decimal(18,2)" json:"estimated_value"`
	Status          Status         `gorm:"size:16;default:'active'" json:"status"`
	LastTxHash      string         `gorm:"size:66" json:"-"`
	StatusUpdatedAt time.Time      `gorm:"autoCreateTime" json:"status_updated_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Vault) TableName() string { return "vaults" }
