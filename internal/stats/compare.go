package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sitewind/windstats/internal/domain"
)

// Comparison contrasts two sources over the days they both cover. All values
// are computed on the date intersection only, so a short series against a long
// one compares like against like.
type Comparison struct {
	SourceA  string `json:"source_a"`
	SourceB  string `json:"source_b"`
	Variable string `json:"variable,omitempty"`

	SharedDays  int     `json:"shared_days"`
	MeanA       float64 `json:"mean_a"`
	MeanB       float64 `json:"mean_b"`
	MeanDiff    float64 `json:"mean_diff"` // MeanB - MeanA
	MAE         float64 `json:"mae"`
	Correlation float64 `json:"correlation"`
	StdA        float64 `json:"std_a"`
	StdB        float64 `json:"std_b"`
	MaxA        float64 `json:"max_a"`
	MaxB        float64 `json:"max_b"`
	MinA        float64 `json:"min_a"`
	MinB        float64 `json:"min_b"`

	// Days on which each source exceeded the configured threshold.
	Threshold    float64 `json:"threshold"`
	ExtremeDaysA int     `json:"extreme_days_a"`
	ExtremeDaysB int     `json:"extreme_days_b"`
}

// CompareSources matches two daily series on date and computes agreement
// statistics for the selected variable. SharedDays is zero when the series
// never overlap; the remaining fields are meaningless in that case.
func CompareSources(a, b []domain.DailyRecord, value func(domain.DailyRecord) float64, threshold float64) Comparison {
	cmp := Comparison{Threshold: threshold}
	if len(a) > 0 {
		cmp.SourceA = a[0].Source
	}
	if len(b) > 0 {
		cmp.SourceB = b[0].Source
	}

	byDay := make(map[time.Time]float64, len(b))
	for _, rec := range b {
		byDay[rec.Date.UTC().Truncate(24*time.Hour)] = value(rec)
	}

	var xs, ys []float64
	for _, rec := range a {
		y, ok := byDay[rec.Date.UTC().Truncate(24*time.Hour)]
		if !ok {
			continue
		}
		xs = append(xs, value(rec))
		ys = append(ys, y)
	}
	cmp.SharedDays = len(xs)
	if cmp.SharedDays == 0 {
		return cmp
	}

	cmp.MeanA = stat.Mean(xs, nil)
	cmp.MeanB = stat.Mean(ys, nil)
	cmp.MeanDiff = cmp.MeanB - cmp.MeanA
	cmp.StdA = stat.StdDev(xs, nil)
	cmp.StdB = stat.StdDev(ys, nil)
	cmp.Correlation = stat.Correlation(xs, ys, nil)

	cmp.MinA, cmp.MaxA = bounds(xs)
	cmp.MinB, cmp.MaxB = bounds(ys)

	var absSum float64
	for i := range xs {
		absSum += math.Abs(xs[i] - ys[i])
		if xs[i] > threshold {
			cmp.ExtremeDaysA++
		}
		if ys[i] > threshold {
			cmp.ExtremeDaysB++
		}
	}
	cmp.MAE = absSum / float64(len(xs))

	return cmp
}

func bounds(xs []float64) (min, max float64) {
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}
