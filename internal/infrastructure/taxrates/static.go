// Package taxrates supplies the studio's configured default tax rates.
package taxrates

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lachapelle/studio-backoffice/internal/core/domain"
)

// Static serves a fixed pair of rates loaded from configuration.
// Documents freeze these at creation time, so changing the config only
// affects documents created afterward.
type Static struct {
	policy domain.TaxPolicy
}

func NewStatic(rate1, rate2 decimal.Decimal) *Static {
	return &Static{policy: domain.TaxPolicy{Rate1: rate1, Rate2: rate2}}
}

func (s *Static) CurrentRates(_ context.Context) (domain.TaxPolicy, error) {
	return s.policy, nil
}
