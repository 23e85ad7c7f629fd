package vault

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"vaultshield/internal/codec"
	"vaultshield/internal/coordinator"
	loandomain "vaultshield/internal/domain/loan"
	"vaultshield/internal/domain/uow"
	domain "vaultshield/internal/domain/vault"
	"vaultshield/internal/ledger"
	"vaultshield/internal/oracle"
	"vaultshield/pkg/id"
)

type Usecase struct {
	uow    uow.UnitOfWork
	vaults domain.Repository
	loans  loandomain.Repository
	codec  codec.Codec
	oracle oracle.ValueOracle
	coord  *coordinator.Coordinator
	log    zerolog.Logger
}

func NewUsecase(tx uow.UnitOfWork, vaults domain.Repository, loans loandomain.Repository, cdc codec.Codec, orc oracle.ValueOracle, coord *coordinator.Coordinator, log zerolog.Logger) *Usecase {
	return &Usecase{uow: tx, vaults: vaults, loans: loans, codec: cdc, oracle: orc, coord: coord, log: log}
}

type CreateVaultInput struct {
	Owner         string  `json:"owner"`
	AssetContract string  `json:"asset_contract"`
	AssetTokenID  uint64  `json:"asset_token_id"`
	// EstimatedValue seeds the local capacity figure. Zero means "ask the
	// oracle".
	EstimatedValue float64 `json:"estimated_value"`
}

type VaultDTO struct {
	VaultID        string    `json:"vault_id"`
	Owner          string    `json:"owner"`
	AssetContract  string    `json:"asset_contract"`
	AssetTokenID   uint64    `json:"asset_token_id"`
	EstimatedValue float64   `json:"estimated_value"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

type createPayload struct {
	Owner         string `json:"owner"`
	AssetContract string `json:"asset_contract"`
	AssetTokenID  uint64 `json:"asset_token_id"`
	Ciphertext    []byte `json:"ciphertext"`
	Proof         []byte `json:"proof"`
}

// Create locks an asset as collateral. The sealed value goes to the ledger;
// the plaintext estimate stays local for capacity checks. The vault row is
// only persisted once the ledger confirms.
func (u *Usecase) Create(ctx context.Context, in CreateVaultInput) (*VaultDTO, *coordinator.Operation, error) {
	estimate := in.EstimatedValue
	if estimate == 0 {
		v, err := u.oracle.EstimateValue(ctx, in.AssetContract, in.AssetTokenID)
		if err != nil {
			return nil, nil, err
		}
		estimate = v
	}
	if estimate <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	// No double-pledging of the identical asset by the same owner.
	if _, err := u.vaults.GetActiveByAsset(ctx, in.Owner, in.AssetContract, in.AssetTokenID); err == nil {
		return nil, nil, domain.ErrDuplicateCollateral
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	sealed, err := u.codec.Encode(estimate)
	if err != nil {
		return nil, nil, err
	}

	v := &domain.Vault{
		VaultID:         id.NewID32(),
		Owner:           in.Owner,
		AssetContract:   in.AssetContract,
		AssetTokenID:    in.AssetTokenID,
		SealedValue:     sealed.Ciphertext,
		ValueProof:      sealed.Proof,
		EstimatedValue:  estimate,
		Status:          domain.StatusActive,
		StatusUpdatedAt: time.Now().UTC(),
	}

	payload, _ := json.Marshal(createPayload{
		Owner:         in.Owner,
		AssetContract: in.AssetContract,
		AssetTokenID:  in.AssetTokenID,
		Ciphertext:    sealed.Ciphertext,
		Proof:         sealed.Proof,
	})

	key := coordinator.AssetKey(in.Owner, in.AssetContract, in.AssetTokenID)
	op, err := u.coord.Run(ctx, key, ledger.KindCreateVault, payload, func(ctx context.Context, res ledger.Result) error {
		return u.ConfirmCreate(ctx, v, res)
	})
	if err != nil {
		u.log.Warn().Err(err).Str("owner", in.Owner).Str("asset", in.AssetContract).Msg("vault creation not confirmed")
		return nil, op, err
	}

	u.log.Info().Str("vault_id", v.VaultID).Str("owner", v.Owner).Msg("vault created")
	return toDTO(v), op, nil
}

// ConfirmCreate persists the vault once the ledger confirms. Re-delivery of
// the same confirmation is a no-op.
func (u *Usecase) ConfirmCreate(ctx context.Context, v *domain.Vault, res ledger.Result) error {
	return u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if _, err := r.Vaults.GetByVaultID(ctx, v.VaultID); err == nil {
			return nil // already applied
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		// Re-validate against current state: the asset must still be free.
		if _, err := r.Vaults.GetActiveByAsset(ctx, v.Owner, v.AssetContract, v.AssetTokenID); err == nil {
			return domain.ErrDuplicateCollateral
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		v.LastTxHash = res.TxHash
		return r.Vaults.Create(ctx, v)
	})
}

// Close transitions an owner's vault to closed. Only vaults with no open
// loan can close.
func (u *Usecase) Close(ctx context.Context, vaultID, caller string) (*VaultDTO, *coordinator.Operation, error) {
	v, err := u.getVault(ctx, vaultID)
	if err != nil {
		return nil, nil, err
	}
	if v.Owner != caller {
		return nil, nil, domain.ErrNotOwner
	}
	if v.Status != domain.StatusActive {
		return nil, nil, domain.ErrNotActive
	}
	if _, err := u.loans.GetOpenByVaultID(ctx, vaultID); err == nil {
		return nil, nil, domain.ErrHasActiveLoan
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	payload, _ := json.Marshal(map[string]string{"vault_id": vaultID})
	op, err := u.coord.Run(ctx, coordinator.VaultKey(vaultID), ledger.KindCloseVault, payload, func(ctx context.Context, res ledger.Result) error {
		return u.ConfirmClose(ctx, vaultID, res)
	})
	if err != nil {
		return nil, op, err
	}

	closed, err := u.getVault(ctx, vaultID)
	if err != nil {
		return nil, op, err
	}
	u.log.Info().Str("vault_id", vaultID).Msg("vault closed")
	return toDTO(closed), op, nil
}

// ConfirmClose applies the close transition, re-validating guards against
// current persisted state. Idempotent under duplicated confirmation.
func (u *Usecase) ConfirmClose(ctx context.Context, vaultID string, res ledger.Result) error {
	return u.uow.WithinVaultTx(ctx, vaultID, func(r uow.Repos, v *domain.Vault) error {
		if v.LastTxHash == res.TxHash && v.Status == domain.StatusClosed {
			return nil // already applied
		}
		if v.Status != domain.StatusActive {
			return domain.ErrNotActive
		}
		if _, err := r.Loans.GetOpenByVaultID(ctx, vaultID); err == nil {
			return domain.ErrHasActiveLoan
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		v.Status = domain.StatusClosed
		v.StatusUpdatedAt = time.Now().UTC()
		v.LastTxHash = res.TxHash
		return r.Vaults.Save(ctx, v)
	})
}

// RefreshEstimate re-queries the oracle and updates the local capacity
// figure. The sealed on-chain value is untouched; only risk math moves.
func (u *Usecase) RefreshEstimate(ctx context.Context, vaultID string) (*VaultDTO, error) {
	var dto *VaultDTO
	err := u.uow.WithinVaultTx(ctx, vaultID, func(r uow.Repos, v *domain.Vault) error {
		if v.Status != domain.StatusActive {
			return domain.ErrNotActive
		}
		estimate, err := u.oracle.EstimateValue(ctx, v.AssetContract, v.AssetTokenID)
		if err != nil {
			return err
		}
		if estimate <= 0 {
			return domain.ErrInvalidAmount
		}
		v.EstimatedValue = estimate
		if err := r.Vaults.Save(ctx, v); err != nil {
			return err
		}
		dto = toDTO(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (u *Usecase) Get(ctx context.Context, vaultID string) (*VaultDTO, error) {
	v, err := u.getVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	return toDTO(v), nil
}

func (u *Usecase) getVault(ctx context.Context, vaultID string) (*domain.Vault, error) {
	v, err := u.vaults.GetByVaultID(ctx, vaultID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func toDTO(v *domain.Vault) *VaultDTO {
	return &VaultDTO{
		VaultID:        v.VaultID,
		Owner:          v.Owner,
		AssetContract:  v.AssetContract,
		AssetTokenID:   v.AssetTokenID,
		EstimatedValue: v.EstimatedValue,
		Status:         string(v.Status),
		CreatedAt:      v.CreatedAt,
	}
}
