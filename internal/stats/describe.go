package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// minDescribeSample mirrors the reporting rule: fewer than 5 values is not
// worth a descriptive row.
const minDescribeSample = 5

// Summary is the descriptive statistics row for one source's daily series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// Describe computes count, mean, spread, and the 5/25/50/75/95 percentiles of
// a value set. Returns ok=false when the sample is too small to summarize.
func Describe(values []float64) (Summary, bool) {
	if len(values) < minDescribeSample {
		return Summary{}, false
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q := func(p float64) float64 {
		return stat.Quantile(p, stat.Empirical, sorted, nil)
	}

	return Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Std:    stat.StdDev(sorted, nil),
		Min:    sorted[0],
		P5:     q(0.05),
		P25:    q(0.25),
		Median: q(0.50),
		P75:    q(0.75),
		P95:    q(0.95),
		Max:    sorted[len(sorted)-1],
	}, true
}
