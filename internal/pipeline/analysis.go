package pipeline

import (
	"errors"
	"log/slog"
	"sort"

	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/quality"
	"github.com/sitewind/windstats/internal/stats"
)

// MergedSeries labels the fit computed over all sources' records pooled
// together, alongside the per-source fits.
const MergedSeries = "merged"

const (
	VariableMean = "windspeed_mean"
	VariableGust = "windspeed_gust"
)

// SeriesFit is one (source, variable) extreme-value fit. A fit that could not
// be computed carries the reason instead of parameters; an unusable fit never
// fails the whole analysis.
type SeriesFit struct {
	Source      string     `json:"source"`
	Variable    string     `json:"variable"`
	MaximaCount int        `json:"maxima_count"`
	Fit         *stats.Fit `json:"fit,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// SiteAnalysis is the full statistical output for one site: design-speed fits
// per source and merged, descriptive summaries, and pairwise source agreement.
type SiteAnalysis struct {
	Site        domain.Site               `json:"site"`
	Fits        []SeriesFit               `json:"fits"`
	Summaries   map[string]stats.Summary  `json:"summaries,omitempty"`
	Comparisons []stats.Comparison        `json:"comparisons,omitempty"`
	Quality     map[string]quality.Report `json:"quality"`
	Failures    []SourceFailure           `json:"failures,omitempty"`
}

// Analyzer turns a site's merged daily dataset into extreme-value statistics
// and cross-source diagnostics.
type Analyzer struct {
	engine    stats.Engine
	maxima    stats.MaximaOptions
	threshold float64
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewAnalyzer(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Analyzer {
	opts := stats.MaximaOptions{Block: stats.BlockAnnual}
	if cfg.ExcludeLowCoverageDays {
		opts.MinDailySamples = cfg.MinDailySamples
	}
	return &Analyzer{
		engine: stats.Engine{
			Method:        stats.Method(cfg.FitMethod),
			MinSample:     cfg.MinBlockMaxima,
			ReturnPeriods: cfg.ReturnPeriods,
		},
		maxima:    opts,
		threshold: cfg.BuildingCodeThreshold,
		logger:    logger,
		metrics:   metrics,
	}
}

// Analyze computes fits for each source and for the pooled series, descriptive
// summaries per source, and pairwise comparisons between sources.
func (a *Analyzer) Analyze(result SiteResult) SiteAnalysis {
	analysis := SiteAnalysis{
		Site:     result.Site,
		Quality:  result.Quality,
		Failures: result.Failures,
	}

	bySource := make(map[string][]domain.DailyRecord)
	sources := make([]string, 0)
	for _, rec := range result.Records {
		if _, seen := bySource[rec.Source]; !seen {
			sources = append(sources, rec.Source)
		}
		bySource[rec.Source] = append(bySource[rec.Source], rec)
	}
	sort.Strings(sources)

	for _, source := range sources {
		records := bySource[source]
		analysis.Fits = append(analysis.Fits,
			a.fitSeries(source, VariableMean, records, stats.MeanSpeed),
			a.fitSeries(source, VariableGust, records, stats.GustSpeed),
		)
		if summary, ok := stats.Describe(dailyMeans(records)); ok {
			if analysis.Summaries == nil {
				analysis.Summaries = make(map[string]stats.Summary)
			}
			analysis.Summaries[source] = summary
		}
	}

	if len(sources) > 1 {
		analysis.Fits = append(analysis.Fits,
			a.fitSeries(MergedSeries, VariableMean, result.Records, stats.MeanSpeed),
			a.fitSeries(MergedSeries, VariableGust, result.Records, stats.GustSpeed),
		)
	}

	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			for _, variable := range []string{VariableMean, VariableGust} {
				cmp := stats.CompareSources(bySource[sources[i]], bySource[sources[j]], selector(variable), a.threshold)
				cmp.Variable = variable
				if cmp.SharedDays > 0 {
					analysis.Comparisons = append(analysis.Comparisons, cmp)
				}
			}
		}
	}

	return analysis
}

func (a *Analyzer) fitSeries(source, variable string, records []domain.DailyRecord, value func(domain.DailyRecord) float64) SeriesFit {
	maxima := stats.BlockMaxima(records, value, a.maxima)
	sf := SeriesFit{Source: source, Variable: variable, MaximaCount: len(maxima)}

	fit, err := a.engine.Fit(stats.Values(maxima))
	if err != nil {
		sf.Error = err.Error()
		a.metrics.FitFailures.WithLabelValues(fitFailureReason(err)).Inc()
		a.logger.Warn("fit unavailable", "source", source, "variable", variable, "error", err)
		return sf
	}

	sf.Fit = &fit
	a.metrics.FitsComputed.Inc()
	return sf
}

func fitFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientSample):
		return "insufficient_sample"
	case errors.Is(err, domain.ErrFitDivergence):
		return "divergence"
	default:
		return "other"
	}
}

func selector(variable string) func(domain.DailyRecord) float64 {
	if variable == VariableGust {
		return stats.GustSpeed
	}
	return stats.MeanSpeed
}

func dailyMeans(records []domain.DailyRecord) []float64 {
	out := make([]float64, len(records))
	for i, rec := range records {
		out[i] = rec.WindspeedDailyAvg
	}
	return out
}
