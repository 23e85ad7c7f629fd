package reputation

import (
	"errors"
	"math"
	"time"
)

type Outcome string

const (
	OutcomeRepaid    Outcome = "repaid"
	OutcomeDefaulted Outcome = "defaulted"
)

var (
	ErrNotFound       = errors.New("reputation record not found")
	ErrUnknownOutcome = errors.New("unknown loan outcome")
)

// NeutralScore is the baseline for borrowers with no settled loans.
const NeutralScore = 50.0

// Record aggregates a borrower's settlement history. Counters are monotonic
// and the totals are plaintext aggregates, not confidential values.
type Record struct {
	ID             uint64    `gorm:"primaryKey;column:id" json:"-"`
	Borrower       string    `gorm:"size:42;uniqueIndex:ux_reputation_borrower" json:"borrower"`
	TotalBorrowed  float64   `gorm:"type:decimal(18,2)" json:"total_borrowed"`
	LoansRepaid    uint64    `json:"loans_repaid"`
	LoansDefaulted uint64    `json:"loans_defaulted"`
	Score          float64   `gorm:"type:decimal(6,2)" json:"score"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Record) TableName() string { return "reputation_records" }

// ScoreOf maps settlement counters to a score in [0,100]. Laplace smoothing
// (two virtual half-weight settlements) keeps a single repayment from
// jumping straight to 100 and yields NeutralScore for unseen borrowers.
func ScoreOf(repaid, defaulted uint64) float64 {
	settled := float64(repaid + defaulted)
	score := 100 * (float64(repaid) + 1) / (settled + 2)
	return math.Round(score*100) / 100
}
