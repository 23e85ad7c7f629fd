// Package risk holds the pure loan-to-value math. Nothing here touches
// storage or ciphertext; callers pass plaintext local estimates.
package risk

import (
	"errors"
	"math"
)

var ErrInvalidInput = errors.New("risk: invalid input")

// Policy carries the deployment's risk appetite. Values are percentages.
type Policy struct {
	MaxLTVPercent               float64
	LiquidationThresholdPercent float64
}

func DefaultPolicy() Policy {
	return Policy{MaxLTVPercent: 75, LiquidationThresholdPercent: 85}
}

func (p Policy) Validate() error {
	if p.MaxLTVPercent <= 0 || p.MaxLTVPercent > 100 {
		return ErrInvalidInput
	}
	if p.LiquidationThresholdPercent < p.MaxLTVPercent || p.LiquidationThresholdPercent > 100 {
		return ErrInvalidInput
	}
	return nil
}

// LTV returns loanAmount / collateralValue as a percentage. Collateral must
// be strictly positive; a zero collateral is an input error, never a panic.
func LTV(loanAmount, collateralValue float64) (float64, error) {
	if collateralValue <= 0 || loanAmount < 0 {
		return 0, ErrInvalidInput
	}
	return loanAmount / collateralValue * 100, nil
}

// MaxLoan returns the largest principal the collateral supports at the given
// max LTV, rounded down to 2dp so the cap is never optimistic.
func MaxLoan(collateralValue, maxLTVPercent float64) float64 {
	if collateralValue <= 0 || maxLTVPercent <= 0 {
		return 0
	}
	return math.Floor(collateralValue*maxLTVPercent) / 100
}

// IsLiquidatable reports whether the position has crossed the liquidation
// threshold. The boundary itself is liquidatable.
func IsLiquidatable(currentLTV, thresholdPercent float64) bool {
	return currentLTV >= thresholdPercent
}
