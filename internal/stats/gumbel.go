package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sitewind/windstats/internal/domain"
)

// Method identifies how the Gumbel parameters were estimated. The method is
// fixed by configuration and recorded in the result; it is never switched
// silently based on sample size.
type Method string

const (
	// MethodMoments estimates (mu, beta) from the sample mean and standard
	// deviation: beta = s*sqrt(6)/pi, mu = mean - gamma*beta.
	MethodMoments Method = "moments"

	// MethodMLE estimates (mu, beta) by maximum likelihood, iterating the
	// fixed-point equation for beta from the moments starting value.
	MethodMLE Method = "mle"
)

// eulerGamma is the Euler-Mascheroni constant used by the moments estimator.
const eulerGamma = 0.5772156649015329

// DefaultMinSample is the fewest block maxima a fit will be attempted on.
const DefaultMinSample = 5

// DefaultReturnPeriods are the design return periods computed when none are
// configured.
var DefaultReturnPeriods = []int{50, 100, 200}

// ReturnLevel maps a return period in years to its design wind speed.
type ReturnLevel struct {
	PeriodYears int     `json:"return_period_years"`
	Speed       float64 `json:"design_speed_ms"`
}

// Fit is a fitted Gumbel model with its return-level table. SampleSize and
// Method are carried so a report can disclose how confident the fit is.
type Fit struct {
	Method      Method        `json:"method"`
	Location    float64       `json:"location"` // mu
	Scale       float64       `json:"scale"`    // beta, always > 0
	SampleSize  int           `json:"sample_size"`
	KSStatistic float64       `json:"ks_statistic"` // Kolmogorov-Smirnov goodness-of-fit
	Levels      []ReturnLevel `json:"return_levels"`
	ComputedAt  time.Time     `json:"computed_at"`
}

// ReturnLevel evaluates the fitted model at an arbitrary return period:
// v_T = mu - beta*ln(-ln(1 - 1/T)).
func (f Fit) ReturnLevel(periodYears int) float64 {
	dist := distuv.GumbelRight{Mu: f.Location, Beta: f.Scale}
	return dist.Quantile(1 - 1/float64(periodYears))
}

// Engine fits Gumbel models to block-maxima samples.
type Engine struct {
	// Method selects the estimator. Empty means MethodMLE, matching
	// standard extreme-value practice.
	Method Method

	// MinSample is the smallest maxima count a fit is attempted on.
	// Zero means DefaultMinSample.
	MinSample int

	// ReturnPeriods are the design periods (years) tabulated in the result.
	// Empty means DefaultReturnPeriods.
	ReturnPeriods []int
}

// Fit estimates Gumbel location and scale from a block-maxima sample and
// tabulates the configured return levels. It fails with ErrInsufficientSample
// below the sample floor and with ErrFitDivergence when the estimate is not a
// valid distribution (beta <= 0 or non-finite parameters); it never clamps.
func (e Engine) Fit(maxima []float64) (Fit, error) {
	minSample := e.MinSample
	if minSample <= 0 {
		minSample = DefaultMinSample
	}
	if len(maxima) < minSample {
		return Fit{}, fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientSample, len(maxima), minSample)
	}

	method := e.Method
	if method == "" {
		method = MethodMLE
	}

	var mu, beta float64
	var err error
	switch method {
	case MethodMoments:
		mu, beta = momentsEstimate(maxima)
	case MethodMLE:
		mu, beta, err = mleEstimate(maxima)
		if err != nil {
			return Fit{}, err
		}
	default:
		return Fit{}, fmt.Errorf("unknown fit method %q", method)
	}

	if beta <= 0 || !isFinite(mu) || !isFinite(beta) {
		return Fit{}, fmt.Errorf("%w: mu=%g beta=%g", domain.ErrFitDivergence, mu, beta)
	}

	periods := e.ReturnPeriods
	if len(periods) == 0 {
		periods = DefaultReturnPeriods
	}

	fit := Fit{
		Method:      method,
		Location:    mu,
		Scale:       beta,
		SampleSize:  len(maxima),
		KSStatistic: ksStatistic(maxima, mu, beta),
		ComputedAt:  domain.Now(),
	}
	for _, p := range periods {
		if p <= 1 {
			continue // return level is undefined at T <= 1
		}
		fit.Levels = append(fit.Levels, ReturnLevel{PeriodYears: p, Speed: fit.ReturnLevel(p)})
	}
	return fit, nil
}

// momentsEstimate computes the method-of-moments Gumbel parameters.
func momentsEstimate(sample []float64) (mu, beta float64) {
	mean := stat.Mean(sample, nil)
	sd := stat.StdDev(sample, nil)
	beta = sd * math.Sqrt(6) / math.Pi
	mu = mean - eulerGamma*beta
	return mu, beta
}

// mleEstimate solves the Gumbel maximum-likelihood equations. beta satisfies
// the fixed point
//
//	beta = mean(x) - sum(x_i*exp(-x_i/beta)) / sum(exp(-x_i/beta))
//
// iterated from the moments estimate; mu then follows in closed form as
// -beta*ln(mean(exp(-x_i/beta))). A sample with no spread has no maximizer
// with beta > 0, which is reported as divergence.
func mleEstimate(sample []float64) (mu, beta float64, err error) {
	const (
		maxIterations = 200
		tolerance     = 1e-10
	)

	mean := stat.Mean(sample, nil)
	_, beta = momentsEstimate(sample)
	if beta <= 0 || !isFinite(beta) {
		return 0, 0, fmt.Errorf("%w: degenerate sample, beta0=%g", domain.ErrFitDivergence, beta)
	}

	converged := false
	for i := 0; i < maxIterations; i++ {
		var sumW, sumXW float64
		for _, x := range sample {
			w := math.Exp(-x / beta)
			sumW += w
			sumXW += x * w
		}
		next := mean - sumXW/sumW
		if next <= 0 || !isFinite(next) {
			return 0, 0, fmt.Errorf("%w: beta left the feasible region at iteration %d", domain.ErrFitDivergence, i)
		}
		if math.Abs(next-beta) <= tolerance*math.Max(1, beta) {
			beta = next
			converged = true
			break
		}
		beta = next
	}
	if !converged {
		return 0, 0, fmt.Errorf("%w: likelihood iteration did not converge", domain.ErrFitDivergence)
	}

	var sumW float64
	for _, x := range sample {
		sumW += math.Exp(-x / beta)
	}
	mu = -beta * math.Log(sumW/float64(len(sample)))
	return mu, beta, nil
}

// ksStatistic computes the Kolmogorov-Smirnov distance between the empirical
// CDF of the sample and the fitted Gumbel CDF. Smaller is better.
func ksStatistic(sample []float64, mu, beta float64) float64 {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	dist := distuv.GumbelRight{Mu: mu, Beta: beta}
	n := float64(len(sorted))

	var d float64
	for i, x := range sorted {
		f := dist.CDF(x)
		lo := math.Abs(f - float64(i)/n)
		hi := math.Abs(float64(i+1)/n - f)
		d = math.Max(d, math.Max(lo, hi))
	}
	return d
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
