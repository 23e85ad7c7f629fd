package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	loanDomain "vaultshield/internal/domain/loan"
	repDomain "vaultshield/internal/domain/reputation"
	"vaultshield/internal/domain/uow"
	vaultDomain "vaultshield/internal/domain/vault"
	"vaultshield/pkg/id"
)

// openUowDB migrates all three tables, so the UoW can orchestrate the repos.
func openUowDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&vaultSQLite{}, &loanSQLite{}, &recordSQLite{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func TestGormUoW_WithinTx_Commit(t *testing.T) {
	db := openUowDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	vaultRepo := NewVaultRepository(db)
	loanRepo := NewLoanRepository(db)

	vaultID := id.NewID32()
	loanID := id.NewID32()
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Vaults.Create(ctx, makeVault(vaultID, "0xaaaa", 1, vaultDomain.StatusActive)); err != nil {
			return err
		}
		return r.Loans.Create(ctx, makeLoan(loanID, vaultID, loanDomain.StateRequested))
	})
	if err != nil {
		t.Fatalf("WithinTx commit err: %v", err)
	}

	if _, err := vaultRepo.GetByVaultID(ctx, vaultID); err != nil {
		t.Fatalf("vault not visible after commit: %v", err)
	}
	if _, err := loanRepo.GetByLoanID(ctx, loanID); err != nil {
		t.Fatalf("loan not visible after commit: %v", err)
	}
}

func TestGormUoW_WithinTx_Rollback(t *testing.T) {
	db := openUowDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	vaultRepo := NewVaultRepository(db)
	loanRepo := NewLoanRepository(db)

	vaultID := id.NewID32()
	loanID := id.NewID32()
	sentinel := errors.New("boom")

	_ = guow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Vaults.Create(ctx, makeVault(vaultID, "0xaaaa", 1, vaultDomain.StatusActive)); err != nil {
			return err
		}
		if err := r.Loans.Create(ctx, makeLoan(loanID, vaultID, loanDomain.StateRequested)); err != nil {
			return err
		}
		return sentinel // force rollback
	})

	if _, err := vaultRepo.GetByVaultID(ctx, vaultID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected vault not found after rollback, got %v", err)
	}
	if _, err := loanRepo.GetByLoanID(ctx, loanID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected loan not found after rollback, got %v", err)
	}
}

func TestGormUoW_WithinLoanTx_Commit(t *testing.T) {
	db := openUowDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)
	repRepo := NewReputationRepository(db)

	loanID := id.NewID32()
	seed := makeLoan(loanID, id.NewID32(), loanDomain.StateActive)
	if err := loanRepo.Create(ctx, seed); err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	// Settle the loan and write the reputation record in one transaction.
	err := guow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		if l == nil || l.LoanID != loanID || l.State != loanDomain.StateActive {
			t.Fatalf("unexpected loan passed to fn: %+v", l)
		}
		l.State = loanDomain.StateRepaid
		l.OutstandingBalance = 0
		l.StateUpdatedAt = time.Now().UTC()
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		return r.Reputation.Create(ctx, &repDomain.Record{
			Borrower: l.Borrower, TotalBorrowed: l.Principal, LoansRepaid: 1, Score: repDomain.ScoreOf(1, 0),
		})
	})
	if err != nil {
		t.Fatalf("WithinLoanTx commit err: %v", err)
	}

	gotLoan, err := loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID post-commit: %v", err)
	}
	if gotLoan.State != loanDomain.StateRepaid {
		t.Fatalf("loan state not updated, got=%s", gotLoan.State)
	}
	if _, err := repRepo.GetByBorrower(ctx, seed.Borrower); err != nil {
		t.Fatalf("reputation record not visible after commit: %v", err)
	}
}

func TestGormUoW_WithinLoanTx_Rollback(t *testing.T) {
	db := openUowDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)
	repRepo := NewReputationRepository(db)

	loanID := id.NewID32()
	seed := makeLoan(loanID, id.NewID32(), loanDomain.StateActive)
	if err := loanRepo.Create(ctx, seed); err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	sentinel := errors.New("stop")
	_ = guow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		l.State = loanDomain.StateRepaid
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := r.Reputation.Create(ctx, &repDomain.Record{Borrower: l.Borrower, LoansRepaid: 1}); err != nil {
			return err
		}
		return sentinel
	})

	gotLoan, err := loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("GetByLoanID after rollback: %v", err)
	}
	if gotLoan.State != loanDomain.StateActive {
		t.Fatalf("loan state must be untouched after rollback, got=%s", gotLoan.State)
	}
	if _, err := repRepo.GetByBorrower(ctx, seed.Borrower); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no reputation record after rollback, got %v", err)
	}
}

func TestGormUoW_WithinLoanTx_UnknownLoan(t *testing.T) {
	db := openUowDB(t)
	guow := NewGormUoW(db)

	err := guow.WithinLoanTx(context.Background(), "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee", func(r uow.Repos, l *loanDomain.Loan) error {
		t.Fatalf("fn must not run for an unknown loan")
		return nil
	})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGormUoW_WithinVaultTx_Commit(t *testing.T) {
	db := openUowDB(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	vaultRepo := NewVaultRepository(db)

	vaultID := id.NewID32()
	if err := vaultRepo.Create(ctx, makeVault(vaultID, "0xaaaa", 1, vaultDomain.StatusActive)); err != nil {
		t.Fatalf("seed vault: %v", err)
	}

	err := guow.WithinVaultTx(ctx, vaultID, func(r uow.Repos, v *vaultDomain.Vault) error {
		if v == nil || v.VaultID != vaultID {
			t.Fatalf("unexpected vault passed to fn: %+v", v)
		}
		v.Status = vaultDomain.StatusClosed
		v.StatusUpdatedAt = time.Now().UTC()
		return r.Vaults.Save(ctx, v)
	})
	if err != nil {
		t.Fatalf("WithinVaultTx commit err: %v", err)
	}

	got, err := vaultRepo.GetByVaultID(ctx, vaultID)
	if err != nil {
		t.Fatalf("GetByVaultID post-commit: %v", err)
	}
	if got.Status != vaultDomain.StatusClosed {
		t.Fatalf("vault status not updated, got=%s", got.Status)
	}
}
