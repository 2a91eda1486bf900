package scraper

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer is one store's quote for a tracked item after boundary validation.
// Money is in integer minor currency units. Offers are never mutated; the
// next capture for the same store supersedes the previous one.
type Offer struct {
	Store         string
	Seller        string
	PriceMinor    int64
	ShippingMinor int64
	TaxRate       decimal.Decimal
	InStock       bool
	Rating        *float64
	ReviewCount   *int
	URL           string
	CapturedAt    time.Time
}
