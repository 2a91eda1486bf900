package pricing

import "testing"

func TestComputeStatisticsEmptySeries(t *testing.T) {
	stats := ComputeStatistics(nil, 90)
	if stats.Mean != 0 || stats.Min != 0 || stats.Stdev != 0 {
		t.Fatalf("empty series should yield zero statistics, got %+v", stats)
	}
}

func TestComputeStatisticsSmallSeries(t *testing.T) {
	stats := ComputeStatistics([]int64{100, 200, 300}, 90)
	if stats.Mean != 200 {
		t.Fatalf("expected mean 200, got %d", stats.Mean)
	}
	if stats.Min != 100 {
		t.Fatalf("expected min 100, got %d", stats.Min)
	}
	// population stdev = sqrt(20000/3) = 81.65 -> 82
	if stats.Stdev != 82 {
		t.Fatalf("expected stdev 82, got %d", stats.Stdev)
	}
}

func TestComputeStatisticsSingleElement(t *testing.T) {
	stats := ComputeStatistics([]int64{1500}, 90)
	if stats.Mean != 1500 || stats.Min != 1500 || stats.Stdev != 0 {
		t.Fatalf("unexpected statistics: %+v", stats)
	}
}

func TestComputeStatisticsWindowing(t *testing.T) {
	recent := make([]int64, 90)
	for i := range recent {
		recent[i] = int64(1000 + i)
	}

	padded := append([]int64{1, 2, 999999, 5}, recent...)

	got := ComputeStatistics(padded, 90)
	want := ComputeStatistics(recent, 90)
	if got != want {
		t.Fatalf("older elements leaked into the window: got %+v want %+v", got, want)
	}
}

func TestComputeStatisticsShortWindow(t *testing.T) {
	stats := ComputeStatistics([]int64{100, 200, 300, 400}, 2)
	if stats.Mean != 350 || stats.Min != 300 {
		t.Fatalf("window of 2 should only see the last two elements, got %+v", stats)
	}
}
