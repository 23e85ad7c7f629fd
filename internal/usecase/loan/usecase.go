package loan

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"vaultshield/internal/codec"
	"vaultshield/internal/coordinator"
	domain "vaultshield/internal/domain/loan"
	repdomain "vaultshield/internal/domain/reputation"
	"vaultshield/internal/domain/uow"
	vaultdomain "vaultshield/internal/domain/vault"
	"vaultshield/internal/ledger"
	"vaultshield/internal/risk"
	reputation "vaultshield/internal/usecase/reputation"
	"vaultshield/pkg/id"
)

type Usecase struct {
	uow    uow.UnitOfWork
	loans  domain.Repository
	vaults vaultdomain.Repository
	rep    *reputation.Usecase
	codec  codec.Codec
	coord  *coordinator.Coordinator
	policy risk.Policy
	log    zerolog.Logger
	now    func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, loans domain.Repository, vaults vaultdomain.Repository, rep *reputation.Usecase, cdc codec.Codec, coord *coordinator.Coordinator, policy risk.Policy, log zerolog.Logger) *Usecase {
	return &Usecase{
		uow: tx, loans: loans, vaults: vaults, rep: rep,
		codec: cdc, coord: coord, policy: policy, log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock for due-date checks in tests.
func (u *Usecase) SetNowFunc(now func() time.Time) { u.now = now }

type RequestLoanInput struct {
	VaultID  string     `json:"vault_id"`
	Borrower string     `json:"borrower"`
	Amount   float64    `json:"amount"`
	DueDate  *time.Time `json:"due_date,omitempty"`
}

type LoanDTO struct {
	LoanID             string     `json:"loan_id"`
	VaultID            string     `json:"vault_id"`
	Borrower           string     `json:"borrower"`
	Principal          float64    `json:"principal"`
	OutstandingBalance float64    `json:"outstanding_balance"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	State              string     `json:"state"`
	CreatedAt          time.Time  `json:"created_at"`
}

type loanPayload struct {
	VaultID    string `json:"vault_id"`
	LoanID     string `json:"loan_id,omitempty"`
	Ciphertext []byte `json:"ciphertext"`
	Proof      []byte `json:"proof"`
}

// Request opens a borrowing against an active vault. Guards run twice: here
// against current state before submission, and again inside the confirm
// handler, because unrelated operations may confirm out of order in
// between. The tentative "requested" row never survives a rejection.
func (u *Usecase) Request(ctx context.Context, in RequestLoanInput) (*LoanDTO, *coordinator.Operation, error) {
	if in.Amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	v, err := u.vaults.GetByVaultID(ctx, in.VaultID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, vaultdomain.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if v.Status != vaultdomain.StatusActive {
		return nil, nil, vaultdomain.ErrNotActive
	}
	if v.Owner != in.Borrower {
		return nil, nil, vaultdomain.ErrNotOwner
	}

	if _, err := u.loans.GetOpenByVaultID(ctx, in.VaultID); err == nil {
		return nil, nil, vaultdomain.ErrHasActiveLoan
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	if maxLoan := risk.MaxLoan(v.EstimatedValue, u.policy.MaxLTVPercent); in.Amount > maxLoan {
		return nil, nil, domain.ErrExceedsMaxLoan
	}
	allowed, err := u.rep.Allow(ctx, in.Borrower)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, domain.ErrReputationDenied
	}

	sealed, err := u.codec.Encode(in.Amount)
	if err != nil {
		return nil, nil, err
	}

	l := &domain.Loan{
		LoanID:             id.NewID32(),
		VaultID:            in.VaultID,
		Borrower:           in.Borrower,
		SealedPrincipal:    sealed.Ciphertext,
		PrincipalProof:     sealed.Proof,
		Principal:          in.Amount,
		SealedBalance:      sealed.Ciphertext,
		OutstandingBalance: in.Amount,
		DueDate:            in.DueDate,
		State:              domain.StateRequested,
		StateUpdatedAt:     u.now(),
	}
	if err := u.loans.Create(ctx, l); err != nil {
		return nil, nil, err
	}

	payload, _ := json.Marshal(loanPayload{VaultID: in.VaultID, LoanID: l.LoanID, Ciphertext: sealed.Ciphertext, Proof: sealed.Proof})
	op, err := u.coord.Run(ctx, coordinator.VaultKey(in.VaultID), ledger.KindRequestLoan, payload, func(ctx context.Context, res ledger.Result) error {
		return u.ConfirmOrigination(ctx, l.LoanID, res)
	})
	if err != nil {
		// Rejected, timed out, or failed re-validation: the tentative loan
		// rolls back to "never created". Retry is a caller-initiated new
		// submission.
		if delErr := u.loans.HardDelete(ctx, l); delErr != nil {
			u.log.Error().Err(delErr).Str("loan_id", l.LoanID).Msg("failed to discard tentative loan")
		}
		u.log.Warn().Err(err).Str("loan_id", l.LoanID).Str("vault_id", in.VaultID).Msg("loan origination not confirmed")
		return nil, op, err
	}

	confirmed, getErr := u.loans.GetByLoanID(ctx, l.LoanID)
	if getErr != nil {
		return nil, op, getErr
	}
	u.log.Info().Str("loan_id", l.LoanID).Str("vault_id", in.VaultID).Msg("loan active")
	return toDTO(confirmed), op, nil
}

// ConfirmOrigination promotes a requested loan to active once the ledger
// accepts it, re-validating the vault guards at confirmation time.
// Idempotent under duplicated confirmation delivery.
func (u *Usecase) ConfirmOrigination(ctx context.Context, loanID string, res ledger.Result) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.State == domain.StateActive && l.LastTxHash == res.TxHash {
			return nil // duplicated confirmation
		}
		if l.State != domain.StateRequested {
			return domain.ErrInvalidTransition
		}

		v, err := r.Vaults.GetByVaultIDForUpdate(ctx, l.VaultID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrConsistency
		}
		if err != nil {
			return err
		}
		if v.Status != vaultdomain.StatusActive {
			return vaultdomain.ErrNotActive
		}

		l.State = domain.StateActive
		l.StateUpdatedAt = u.now()
		l.LastTxHash = res.TxHash
		return r.Loans.Save(ctx, l)
	})
}

// Repay submits a repayment. Over-repayment is rejected, not clamped: the
// caller must resubmit the exact remaining amount.
func (u *Usecase) Repay(ctx context.Context, loanID, caller string, amount float64) (*LoanDTO, *coordinator.Operation, error) {
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	l, err := u.getLoan(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	if l.Borrower != caller {
		return nil, nil, domain.ErrNotBorrower
	}
	if l.State != domain.StateActive {
		return nil, nil, domain.ErrNotActive
	}
	if amount > l.OutstandingBalance {
		return nil, nil, domain.ErrOverRepayment
	}

	sealed, err := u.codec.Encode(amount)
	if err != nil {
		return nil, nil, err
	}

	payload, _ := json.Marshal(loanPayload{VaultID: l.VaultID, LoanID: loanID, Ciphertext: sealed.Ciphertext, Proof: sealed.Proof})
	op, err := u.coord.Run(ctx, coordinator.LoanKey(loanID), ledger.KindRepay, payload, func(ctx context.Context, res ledger.Result) error {
		return u.ConfirmRepayment(ctx, loanID, amount, sealed, res)
	})
	if err != nil {
		return nil, op, err
	}

	updated, err := u.getLoan(ctx, loanID)
	if err != nil {
		return nil, op, err
	}
	u.log.Info().Str("loan_id", loanID).Float64("remaining", updated.OutstandingBalance).Msg("repayment applied")
	return toDTO(updated), op, nil
}

// ConfirmRepayment decrements the outstanding balance under the loan's row
// lock. The balance only ever decreases; hitting zero settles the loan as
// repaid and credits the borrower's reputation in the same transaction.
func (u *Usecase) ConfirmRepayment(ctx context.Context, loanID string, amount float64, sealed codec.SealedAmount, res ledger.Result) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.LastTxHash == res.TxHash {
			return nil // duplicated confirmation, no double-decrement
		}
		if l.State != domain.StateActive {
			return domain.ErrNotActive
		}
		if amount > l.OutstandingBalance {
			return domain.ErrOverRepayment
		}

		l.OutstandingBalance = round2(l.OutstandingBalance - amount)
		l.SealedBalance = sealed.Ciphertext
		l.LastTxHash = res.TxHash
		if l.OutstandingBalance == 0 {
			l.State = domain.StateRepaid
			l.StateUpdatedAt = u.now()
			if err := reputation.Apply(ctx, r.Reputation, l.Borrower, l.Principal, repdomain.OutcomeRepaid); err != nil {
				return err
			}
		}
		return r.Loans.Save(ctx, l)
	})
}

// Liquidate force-closes a loan/vault pair once the position breaches the
// liquidation threshold or the due date elapses unpaid.
func (u *Usecase) Liquidate(ctx context.Context, loanID string, amount float64) (*LoanDTO, *coordinator.Operation, error) {
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	l, err := u.getLoan(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	if l.State != domain.StateActive {
		return nil, nil, domain.ErrNotActive
	}
	if err := u.checkLiquidatable(ctx, l); err != nil {
		return nil, nil, err
	}

	sealed, err := u.codec.Encode(amount)
	if err != nil {
		return nil, nil, err
	}

	payload, _ := json.Marshal(loanPayload{VaultID: l.VaultID, LoanID: loanID, Ciphertext: sealed.Ciphertext, Proof: sealed.Proof})
	op, err := u.coord.Run(ctx, coordinator.LoanKey(loanID), ledger.KindLiquidate, payload, func(ctx context.Context, res ledger.Result) error {
		return u.ConfirmLiquidation(ctx, loanID, res)
	})
	if err != nil {
		return nil, op, err
	}

	updated, err := u.getLoan(ctx, loanID)
	if err != nil {
		return nil, op, err
	}
	u.log.Warn().Str("loan_id", loanID).Str("vault_id", l.VaultID).Msg("loan liquidated")
	return toDTO(updated), op, nil
}

// ConfirmLiquidation moves loan and vault to liquidated and settles the
// borrower's reputation as a default, all under the loan's row lock. The
// guard is re-checked at confirmation time. Idempotent.
func (u *Usecase) ConfirmLiquidation(ctx context.Context, loanID string, res ledger.Result) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.State == domain.StateLiquidated {
			return nil // already applied
		}
		if l.State != domain.StateActive {
			return domain.ErrNotActive
		}
		if err := u.checkLiquidatable(ctx, l); err != nil {
			return err
		}

		v, err := r.Vaults.GetByVaultIDForUpdate(ctx, l.VaultID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrConsistency
		}
		if err != nil {
			return err
		}

		l.State = domain.StateLiquidated
		l.StateUpdatedAt = u.now()
		l.LastTxHash = res.TxHash
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}

		v.Status = vaultdomain.StatusLiquidated
		v.StatusUpdatedAt = u.now()
		v.LastTxHash = res.TxHash
		if err := r.Vaults.Save(ctx, v); err != nil {
			return err
		}

		// Liquidation counts against reputation.
		return reputation.Apply(ctx, r.Reputation, l.Borrower, l.Principal, repdomain.OutcomeDefaulted)
	})
}

// MarkDefaulted settles an overdue active loan as defaulted when nobody
// liquidates it. Local projection transition only; the vault keeps its
// status so the collateral can still be liquidated on-chain later.
func (u *Usecase) MarkDefaulted(ctx context.Context, loanID string) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domain.Loan) error {
		if l.State == domain.StateDefaulted {
			dto = toDTO(l)
			return nil // already applied
		}
		if l.State != domain.StateActive {
			return domain.ErrNotActive
		}
		if !l.Overdue(u.now()) {
			return domain.ErrNotDue
		}
		l.State = domain.StateDefaulted
		l.StateUpdatedAt = u.now()
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := reputation.Apply(ctx, r.Reputation, l.Borrower, l.Principal, repdomain.OutcomeDefaulted); err != nil {
			return err
		}
		dto = toDTO(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Warn().Str("loan_id", loanID).Msg("loan defaulted")
	return dto, nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.getLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return toDTO(l), nil
}

// checkLiquidatable re-derives the current LTV from the vault's latest
// local estimate. A vault gone missing is a consistency violation that
// halts mutation of this loan.
func (u *Usecase) checkLiquidatable(ctx context.Context, l *domain.Loan) error {
	v, err := u.vaults.GetByVaultID(ctx, l.VaultID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrConsistency
	}
	if err != nil {
		return err
	}
	ltv, err := risk.LTV(l.OutstandingBalance, v.EstimatedValue)
	if err != nil {
		return err
	}
	if risk.IsLiquidatable(ltv, u.policy.LiquidationThresholdPercent) || l.Overdue(u.now()) {
		return nil
	}
	return domain.ErrNotLiquidatable
}

func (u *Usecase) getLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func toDTO(l *domain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:             l.LoanID,
		VaultID:            l.VaultID,
		Borrower:           l.Borrower,
		Principal:          l.Principal,
		OutstandingBalance: l.OutstandingBalance,
		DueDate:            l.DueDate,
		State:              string(l.State),
		CreatedAt:          l.CreatedAt,
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
