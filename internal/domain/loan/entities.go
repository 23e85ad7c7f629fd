package loan

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type State string

const (
	// StateRequested is the tentative row persisted between ledger
	// submission and confirmation; it never survives a rejection.
	StateRequested  State = "requested"
	StateActive     State = "active"
	StateRepaid     State = "repaid"
	StateDefaulted  State = "defaulted"
	StateLiquidated State = "liquidated"
)

// Terminal states are final; no transition leaves them.
func (s State) Terminal() bool {
	return s == StateRepaid || s == StateDefaulted || s == StateLiquidated
}

var (
	ErrNotFound          = errors.New("loan not found")
	ErrNotActive         = errors.New("loan is not active")
	ErrNotBorrower       = errors.New("caller is not the borrower")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrExceedsMaxLoan    = errors.New("requested amount exceeds max loan for collateral")
	ErrReputationDenied  = errors.New("borrower reputation below floor")
	ErrOverRepayment     = errors.New("repayment exceeds outstanding balance")
	ErrNotLiquidatable   = errors.New("loan is not eligible for liquidation")
	ErrNotDue            = errors.New("loan due date has not elapsed")
	ErrConsistency       = errors.New("consistency violation")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Loan is one borrowing drawn against a vault. Principal and the running
// balance exist twice: sealed for the ledger, plaintext mirrors for local
// guard checks. The mirrors are known at request time so nothing here ever
// decrypts a ciphertext.
type Loan struct {
	ID                 uint64         `gorm:"primaryKey;column:id" json:"-"`
	LoanID             string         `gorm:"size:32;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	VaultID            string         `gorm:"size:32;index:idx_loans_vault" json:"vault_id"`
	Borrower           string         `gorm:"size:42;index:idx_loans_borrower" json:"borrower"`
	SealedPrincipal    []byte         `gorm:"type:blob" json:"-"`
	PrincipalProof     []byte         `gorm:"type:blob" json:"-"`
	Principal          float64        `gorm:"type:decimal(18,2)" json:"principal"`
	SealedBalance      []byte         `gorm:"type:blob" json:"-"`
	OutstandingBalance float64        `gorm:"type:decimal(18,2)" json:"outstanding_balance"`
	DueDate            *time.Time     `json:"due_date,omitempty"`
	State              State          `gorm:"size:16;default:'requested'" json:"state"`
	LastTxHash         string         `gorm:"size:66" json:"-"`
	StateUpdatedAt     time.Time      `gorm:"autoCreateTime" json:"state_updated_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// Overdue reports whether the due date has elapsed at ref. Open-ended loans
// are never overdue.
func (l *Loan) Overdue(ref time.Time) bool {
	return l.DueDate != nil && ref.After(*l.DueDate)
}
