package reputation

import (
	"context"
	"errors"
	"math"
	"time"

	domain "vaultshield/internal/domain/reputation"

	"gorm.io/gorm"
)

type Usecase struct {
	repo  domain.Repository
	floor float64
}

// NewUsecase wires the tracker with the configured approval floor.
func NewUsecase(r domain.Repository, floor float64) *Usecase {
	return &Usecase{repo: r, floor: floor}
}

type RecordDTO struct {
	Borrower       string  `json:"borrower"`
	TotalBorrowed  float64 `json:"total_borrowed"`
	LoansRepaid    uint64  `json:"loans_repaid"`
	LoansDefaulted uint64  `json:"loans_defaulted"`
	Score          float64 `json:"score"`
}

// Get returns the borrower's record, or a neutral baseline for borrowers
// with no history.
func (u *Usecase) Get(ctx context.Context, borrower string) (*RecordDTO, error) {
	rec, err := u.repo.GetByBorrower(ctx, borrower)
	switch {
	case err == nil:
		return &RecordDTO{
			Borrower:       rec.Borrower,
			TotalBorrowed:  rec.TotalBorrowed,
			LoansRepaid:    rec.LoansRepaid,
			LoansDefaulted: rec.LoansDefaulted,
			Score:          rec.Score,
		}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &RecordDTO{Borrower: borrower, Score: domain.NeutralScore}, nil
	default:
		return nil, err
	}
}

// Score is the pure read used by the approval gate.
func (u *Usecase) Score(ctx context.Context, borrower string) (float64, error) {
	dto, err := u.Get(ctx, borrower)
	if err != nil {
		return 0, err
	}
	return dto.Score, nil
}

// Allow is the reputation gate: orthogonal to collateral sufficiency, it
// denies borrowers whose score sits below the configured floor.
func (u *Usecase) Allow(ctx context.Context, borrower string) (bool, error) {
	score, err := u.Score(ctx, borrower)
	if err != nil {
		return false, err
	}
	return score >= u.floor, nil
}

// RecordOutcome settles one loan against the borrower's history.
func (u *Usecase) RecordOutcome(ctx context.Context, borrower string, principal float64, outcome domain.Outcome) error {
	return Apply(ctx, u.repo, borrower, principal, outcome)
}

// Apply updates a borrower's record against the given repository, which may
// be transaction-bound when settlement runs inside a loan commit. Counters
// only ever increase; the record is created lazily on first settlement.
func Apply(ctx context.Context, repo domain.Repository, borrower string, principal float64, outcome domain.Outcome) error {
	if outcome != domain.OutcomeRepaid && outcome != domain.OutcomeDefaulted {
		return domain.ErrUnknownOutcome
	}

	rec, err := repo.GetByBorrowerForUpdate(ctx, borrower)
	created := false
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = &domain.Record{Borrower: borrower}
		created = true
	case err != nil:
		return err
	}

	rec.TotalBorrowed = math.Round((rec.TotalBorrowed+principal)*100) / 100
	if outcome == domain.OutcomeRepaid {
		rec.LoansRepaid++
	} else {
		rec.LoansDefaulted++
	}
	rec.Score = domain.ScoreOf(rec.LoansRepaid, rec.LoansDefaulted)
	rec.UpdatedAt = time.Now().UTC()

	if created {
		return repo.Create(ctx, rec)
	}
	return repo.Save(ctx, rec)
}
