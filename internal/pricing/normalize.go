package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeAmount rejects negative price or shipping inputs.
	ErrNegativeAmount = errors.New("pricing: amount cannot be negative")
	// ErrNegativeTaxRate rejects negative tax rates.
	ErrNegativeTaxRate = errors.New("pricing: tax rate cannot be negative")
)

// NormalizeTotal converts a raw store quote into a single comparable total in
// minor currency units: price + shipping + price*taxRate. Tax applies to the
// unit price only, never to shipping; every store must be normalized the same
// way or cross-store comparisons drift by the tax on shipping.
//
// Rounding is half-up (away from zero), via decimal.Round. Totals are
// non-negative here so half-up and half-away coincide.
func NormalizeTotal(priceMinor, shippingMinor int64, taxRate decimal.Decimal) (int64, error) {
	if priceMinor < 0 || shippingMinor < 0 {
		return 0, ErrNegativeAmount
	}
	if taxRate.IsNegative() {
		return 0, ErrNegativeTaxRate
	}

	tax := decimal.NewFromInt(priceMinor).Mul(taxRate)
	total := decimal.NewFromInt(priceMinor + shippingMinor).Add(tax).Round(0)
	return total.IntPart(), nil
}
