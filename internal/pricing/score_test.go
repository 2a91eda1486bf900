package pricing

import "testing"

func TestScoreNoHistoryReturnsZero(t *testing.T) {
	p := DefaultParams()
	if got := Score(700, Statistics{}, true, 5, p); got != 0 {
		t.Fatalf("zero mean must force score 0, got %v", got)
	}
	if got := Score(0, Statistics{Min: 800, Stdev: 100}, false, 0, p); got != 0 {
		t.Fatalf("zero mean must force score 0 regardless of other inputs, got %v", got)
	}
}

func TestScoreWorkedExample(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 1000, Min: 800, Stdev: 100}

	// drop 0.30 + rarity 0.10 + sigma 0.10 + trust 0.10 + in-stock 0.05
	got := Score(700, stats, true, 5, p)
	if got != 0.65 {
		t.Fatalf("expected 0.65, got %v", got)
	}
	if v := ClassifyVerdict(got, p); v != VerdictBuyNow {
		t.Fatalf("0.65 should classify as buy_now, got %s", v)
	}
}

func TestScoreAtMeanInStock(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 1000, Min: 800, Stdev: 100}

	// no drop, no bonuses; trust 4/5*0.10 = 0.08 + in-stock 0.05
	if got := Score(1000, stats, true, 4, p); got != 0.13 {
		t.Fatalf("expected 0.13, got %v", got)
	}
}

func TestScoreOutOfStockPenalty(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 1000, Min: 800, Stdev: 100}

	inStock := Score(950, stats, true, 4, p)
	outOfStock := Score(950, stats, false, 4, p)
	diff := inStock - outOfStock
	if diff < 0.149 || diff > 0.151 {
		t.Fatalf("availability swing should be 0.15, got %v", diff)
	}
}

func TestScoreClampsRating(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 1000, Min: 800, Stdev: 100}

	if Score(1000, stats, true, 9, p) != Score(1000, stats, true, 5, p) {
		t.Fatal("ratings above the maximum must be clamped")
	}
}

func TestScoreDeterministic(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 4321, Min: 3999, Stdev: 137}
	first := Score(4100, stats, true, 3.5, p)
	for i := 0; i < 10; i++ {
		if got := Score(4100, stats, true, 3.5, p); got != first {
			t.Fatalf("score must be bit-identical across calls: %v vs %v", first, got)
		}
	}
}

func TestClassifyVerdictBands(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		score float64
		want  Verdict
	}{
		{0.65, VerdictBuyNow},
		{0.35, VerdictBuyNow},
		{0.349, VerdictAverage},
		{0.15, VerdictAverage},
		{0.149, VerdictWaitForEvent},
		{0, VerdictWaitForEvent},
		{-1, VerdictWaitForEvent},
	}
	for _, tc := range cases {
		if got := ClassifyVerdict(tc.score, p); got != tc.want {
			t.Fatalf("score %v: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestIsFakeSale(t *testing.T) {
	stats := Statistics{Mean: 1000, Stdev: 100}

	if !IsFakeSale(950, stats) {
		t.Fatal("950 is above mean-stdev (900) and should be flagged")
	}
	if IsFakeSale(850, stats) {
		t.Fatal("850 is a real discount and should not be flagged")
	}
	if IsFakeSale(950, Statistics{}) {
		t.Fatal("no history means no basis to call a sale fake")
	}
}

func TestAssessDefaultsMissingRating(t *testing.T) {
	p := DefaultParams()
	stats := Statistics{Mean: 1000, Min: 800, Stdev: 100}

	four := 4.0
	withRating := Assess(700, stats, true, &four, p)
	withoutRating := Assess(700, stats, true, nil, p)
	if withRating.Score != withoutRating.Score {
		t.Fatalf("missing rating should default to %v: %v vs %v", p.DefaultRating, withoutRating.Score, withRating.Score)
	}
	if withoutRating.Verdict != VerdictBuyNow {
		t.Fatalf("expected buy_now, got %s", withoutRating.Verdict)
	}
	if withoutRating.FakeSale {
		t.Fatal("700 is well below mean-stdev, not a fake sale")
	}
}
