// Package oracle is the boundary to the external collateral-valuation
// service. Estimates seed a vault's local capacity figure and are only
// trusted at query time.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrNoEstimate = errors.New("oracle: no estimate for asset")

type ValueOracle interface {
	EstimateValue(ctx context.Context, assetContract string, assetTokenID uint64) (float64, error)
}

// Static serves estimates from a fixed table. Used in tests and development
// wiring; the production oracle is a remote collaborator.
type Static struct {
	mu        sync.RWMutex
	estimates map[string]float64
}

func NewStatic() *Static { return &Static{estimates: make(map[string]float64)} }

func (s *Static) Set(assetContract string, assetTokenID uint64, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimates[assetKey(assetContract, assetTokenID)] = value
}

func (s *Static) EstimateValue(_ context.Context, assetContract string, assetTokenID uint64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.estimates[assetKey(assetContract, assetTokenID)]
	if !ok {
		return 0, ErrNoEstimate
	}
	return v, nil
}

func assetKey(contract string, tokenID uint64) string {
	return fmt.Sprintf("%s/%d", contract, tokenID)
}
