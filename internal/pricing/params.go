package pricing

// Params collects every tunable constant of the deal engine so callers can
// override them from configuration without recompiling.
type Params struct {
	// WindowSize bounds the trailing snapshot window fed into statistics.
	WindowSize int

	// RarityBonus is added when the current total is at or below the
	// lowest total observed in the window.
	RarityBonus float64
	// SigmaBonus is added when the current total sits more than one
	// standard deviation below the windowed mean.
	SigmaBonus float64
	// TrustWeight caps the contribution of the seller rating.
	TrustWeight float64
	// InStockBonus rewards offers that can actually be bought.
	InStockBonus float64
	// OutOfStockPenalty is subtracted for unavailable offers. It is larger
	// than InStockBonus: a deal you cannot buy is worth less than no deal.
	OutOfStockPenalty float64

	// MaxRating clamps seller ratings; DefaultRating substitutes for
	// offers that carry no rating at all.
	MaxRating     float64
	DefaultRating float64

	// BuyNowThreshold and AverageThreshold are the inclusive lower bounds
	// of the buy_now and average verdict bands.
	BuyNowThreshold  float64
	AverageThreshold float64
}

// DefaultParams returns the stock engine tuning.
func DefaultParams() Params {
	return Params{
		WindowSize:        90,
		RarityBonus:       0.10,
		SigmaBonus:        0.10,
		TrustWeight:       0.10,
		InStockBonus:      0.05,
		OutOfStockPenalty: 0.10,
		MaxRating:         5,
		DefaultRating:     4,
		BuyNowThreshold:   0.35,
		AverageThreshold:  0.15,
	}
}
