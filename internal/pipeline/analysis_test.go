package pipeline_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/pipeline"
)

func dayRec(source string, date time.Time, mean, gust float64) domain.DailyRecord {
	return domain.DailyRecord{
		Date:              date,
		WindspeedMean:     mean,
		WindspeedDailyAvg: mean * 0.7,
		WindspeedGust:     gust,
		NHours:            24,
		Source:            source,
	}
}

// yearlyRecords emits one stormy day per year so annual block maxima are
// exactly the given values.
func yearlyRecords(source string, startYear, years int, base float64) []domain.DailyRecord {
	var out []domain.DailyRecord
	for i := 0; i < years; i++ {
		date := time.Date(startYear+i, 3, 15, 0, 0, 0, 0, time.UTC)
		mean := base + float64(i)*1.3
		out = append(out, dayRec(source, date, mean, mean*1.4))
	}
	return out
}

func TestAnalyzer_Analyze_FitsPerSourceAndMerged(t *testing.T) {
	result := pipeline.SiteResult{
		Site: testSite(),
		Records: append(
			yearlyRecords("meteostat", 2015, 8, 18.0),
			yearlyRecords("era5", 2015, 8, 16.5)...,
		),
	}

	a := pipeline.NewAnalyzer(testConfig(), slog.Default(), observability.NewMetricsForTesting())
	analysis := a.Analyze(result)

	// 2 sources x 2 variables, plus the merged series x 2 variables.
	require.Len(t, analysis.Fits, 6)

	seen := make(map[string]bool)
	for _, sf := range analysis.Fits {
		seen[sf.Source+"/"+sf.Variable] = true
		require.Empty(t, sf.Error, "fit for %s/%s", sf.Source, sf.Variable)
		require.NotNil(t, sf.Fit)
		assert.Equal(t, 8, sf.MaximaCount)
		assert.Positive(t, sf.Fit.Scale)

		// Design speeds must grow with the return period.
		levels := sf.Fit.Levels
		require.Len(t, levels, 2)
		assert.Greater(t, levels[1].Speed, levels[0].Speed)
	}
	assert.True(t, seen["meteostat/"+pipeline.VariableMean])
	assert.True(t, seen["era5/"+pipeline.VariableGust])
	assert.True(t, seen[pipeline.MergedSeries+"/"+pipeline.VariableMean])
}

func TestAnalyzer_Analyze_InsufficientSample(t *testing.T) {
	result := pipeline.SiteResult{
		Site:    testSite(),
		Records: yearlyRecords("meteostat", 2021, 3, 18.0),
	}

	a := pipeline.NewAnalyzer(testConfig(), slog.Default(), observability.NewMetricsForTesting())
	analysis := a.Analyze(result)

	require.Len(t, analysis.Fits, 2)
	for _, sf := range analysis.Fits {
		assert.Nil(t, sf.Fit)
		assert.Contains(t, sf.Error, "too few block maxima")
		assert.Equal(t, 3, sf.MaximaCount)
	}
}

func TestAnalyzer_Analyze_Comparisons(t *testing.T) {
	// Same dates, era5 biased low by 1.5 m/s.
	a5 := yearlyRecords("era5", 2015, 8, 16.5)
	ms := yearlyRecords("meteostat", 2015, 8, 18.0)

	analyzer := pipeline.NewAnalyzer(testConfig(), slog.Default(), observability.NewMetricsForTesting())
	analysis := analyzer.Analyze(pipeline.SiteResult{Site: testSite(), Records: append(ms, a5...)})

	require.Len(t, analysis.Comparisons, 2) // one per variable for the single pair

	var meanCmp bool
	for _, cmp := range analysis.Comparisons {
		assert.Equal(t, "era5", cmp.SourceA) // sources ordered alphabetically
		assert.Equal(t, "meteostat", cmp.SourceB)
		assert.Equal(t, 8, cmp.SharedDays)
		if cmp.Variable == pipeline.VariableMean {
			meanCmp = true
			assert.InDelta(t, 1.5, cmp.MeanDiff, 1e-9)
			assert.InDelta(t, 1.5, cmp.MAE, 1e-9)
			assert.InDelta(t, 1.0, cmp.Correlation, 1e-9)
		}
	}
	assert.True(t, meanCmp)
}

func TestAnalyzer_Analyze_Summaries(t *testing.T) {
	result := pipeline.SiteResult{
		Site:    testSite(),
		Records: yearlyRecords("meteostat", 2015, 8, 18.0),
	}

	a := pipeline.NewAnalyzer(testConfig(), slog.Default(), observability.NewMetricsForTesting())
	analysis := a.Analyze(result)

	summary, ok := analysis.Summaries["meteostat"]
	require.True(t, ok)
	assert.Equal(t, 8, summary.Count)
	assert.Greater(t, summary.P95, summary.Median)
}

func TestAnalyzer_Analyze_ExcludesLowCoverageDaysWhenConfigured(t *testing.T) {
	records := yearlyRecords("meteostat", 2015, 8, 18.0)
	// Sparse extra year: a huge gust day backed by almost no samples.
	sparse := dayRec("meteostat", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), 40.0, 60.0)
	sparse.NHours = 3
	records = append(records, sparse)

	cfg := testConfig()
	cfg.ExcludeLowCoverageDays = true

	a := pipeline.NewAnalyzer(cfg, slog.Default(), observability.NewMetricsForTesting())
	analysis := a.Analyze(pipeline.SiteResult{Site: testSite(), Records: records})

	for _, sf := range analysis.Fits {
		assert.Equal(t, 8, sf.MaximaCount, "sparse day must not contribute a block maximum")
	}
}

func TestAnalyzer_Analyze_CarriesFailuresAndQuality(t *testing.T) {
	result := pipeline.SiteResult{
		Site:     testSite(),
		Records:  yearlyRecords("era5", 2015, 8, 16.5),
		Failures: []pipeline.SourceFailure{{Source: "meteostat", Attempts: 3, Reason: "boom"}},
	}

	a := pipeline.NewAnalyzer(testConfig(), slog.Default(), observability.NewMetricsForTesting())
	analysis := a.Analyze(result)

	require.Len(t, analysis.Failures, 1)
	assert.Equal(t, "meteostat", analysis.Failures[0].Source)
}
