package pricing

import "math"

// Statistics summarises a trailing window of normalized totals. All fields
// are whole minor-currency units.
type Statistics struct {
	Mean  int64 `json:"mean"`
	Min   int64 `json:"min"`
	Stdev int64 `json:"stdev"`
}

// ComputeStatistics derives mean, minimum, and population standard deviation
// over the trailing window of a chronologically ordered series of totals.
// Only the last window elements participate; a shorter series uses all of it.
//
// An empty window yields the zero value rather than an error: downstream
// scoring reads Mean == 0 as "no usable history" (see Score).
func ComputeStatistics(series []int64, window int) Statistics {
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	if len(series) == 0 {
		return Statistics{}
	}

	var sum int64
	min := series[0]
	for _, total := range series {
		sum += total
		if total < min {
			min = total
		}
	}

	n := float64(len(series))
	mean := math.Round(float64(sum) / n)

	var sq float64
	for _, total := range series {
		d := float64(total) - mean
		sq += d * d
	}
	stdev := math.Round(math.Sqrt(sq / n))

	return Statistics{
		Mean:  int64(mean),
		Min:   min,
		Stdev: int64(stdev),
	}
}
