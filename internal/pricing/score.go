package pricing

import "math"

// Verdict is a discrete buyer recommendation derived from a deal score.
type Verdict string

const (
	VerdictBuyNow       Verdict = "buy_now"
	VerdictAverage      Verdict = "average"
	VerdictWaitForEvent Verdict = "wait_for_event"
)

// Assessment is the ephemeral output of the deal engine for one offer. It is
// recomputed on every request; a cache may hold a copy but never owns it.
type Assessment struct {
	Score    float64 `json:"score"`
	Verdict  Verdict `json:"verdict"`
	FakeSale bool    `json:"fake_sale"`
}

// Score combines the current normalized total with windowed statistics, stock
// availability, and seller rating into a unitless deal score.
//
// A zero mean means no usable history: the score is 0 unconditionally, which
// downstream consumers read as "no comparison possible" rather than "bad
// deal". Otherwise five additive terms apply: the fractional discount against
// the mean, a rarity bonus at or below the windowed minimum, a sigma bonus
// more than one stdev below the mean, a capped seller-trust term, and an
// availability bonus or penalty. The sum is rounded to 3 decimals so
// threshold comparisons reproduce exactly across runs.
func Score(currentTotal int64, stats Statistics, inStock bool, rating float64, p Params) float64 {
	if stats.Mean == 0 {
		return 0
	}

	score := math.Max(0, float64(stats.Mean-currentTotal)/float64(stats.Mean))

	if currentTotal <= stats.Min {
		score += p.RarityBonus
	}
	if float64(currentTotal) < float64(stats.Mean)-float64(stats.Stdev) {
		score += p.SigmaBonus
	}

	score += math.Min(rating/p.MaxRating, 1) * p.TrustWeight

	if inStock {
		score += p.InStockBonus
	} else {
		score -= p.OutOfStockPenalty
	}

	return math.Round(score*1000) / 1000
}

// ClassifyVerdict maps a score onto the three verdict bands. Lower bounds are
// inclusive; the function is total over the reals.
func ClassifyVerdict(score float64, p Params) Verdict {
	switch {
	case score >= p.BuyNowThreshold:
		return VerdictBuyNow
	case score >= p.AverageThreshold:
		return VerdictAverage
	default:
		return VerdictWaitForEvent
	}
}

// IsFakeSale flags an advertised price that is not even one standard
// deviation below its own historical baseline, i.e. a "sale" statistically
// indistinguishable from ordinary price noise. Advisory only.
func IsFakeSale(currentTotal int64, stats Statistics) bool {
	if stats.Mean == 0 {
		return false
	}
	return float64(currentTotal) > float64(stats.Mean)-float64(stats.Stdev)
}

// Assess runs the full pipeline for one offer. A nil rating falls back to
// p.DefaultRating so unrated-but-legitimate sellers are not punished as if
// they were zero-rated.
func Assess(currentTotal int64, stats Statistics, inStock bool, rating *float64, p Params) Assessment {
	r := p.DefaultRating
	if rating != nil {
		r = *rating
	}
	score := Score(currentTotal, stats, inStock, r, p)
	return Assessment{
		Score:    score,
		Verdict:  ClassifyVerdict(score, p),
		FakeSale: IsFakeSale(currentTotal, stats),
	}
}
