package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	source   string
	errs     []error // consumed one per attempt before batches succeed
	batch    domain.ObservationBatch
	delay    time.Duration
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func (m *mockFetcher) Source() string { return m.source }

func (m *mockFetcher) Fetch(ctx context.Context, _ domain.Site, _, _ time.Time) (domain.ObservationBatch, error) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxSeen.Load()
		if cur <= prev || m.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return domain.ObservationBatch{}, ctx.Err()
		}
	}

	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) {
		return domain.ObservationBatch{}, m.errs[i]
	}
	return m.batch, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Concurrency:      4,
		RetryMaxAttempts: 3,
		RetryBaseBackoff: time.Millisecond,
		RetryMaxBackoff:  5 * time.Millisecond,
		SourceTimeout:    time.Second,
		ProfileExponent:  0.14,
		MinDailySamples:  18,
		MinCoverage:      0.6,
		FitMethod:        "mle",
		MinBlockMaxima:   5,
		ReturnPeriods:    []int{50, 100},
		Sources: map[string]config.SourceSettings{
			"meteostat": {GustFactor: 1.4, AveragingFactor: 1.0},
			"era5":      {GustFactor: 1.4, AveragingFactor: 1.10},
		},
	}
}

// makeBatch builds days of hourly m/s observations starting at start.
func makeBatch(source string, start time.Time, days int, speed float64) domain.ObservationBatch {
	batch := domain.ObservationBatch{Source: source}
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			batch.Observations = append(batch.Observations, domain.RawObservation{
				Time:      start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour),
				Speed:     speed,
				Unit:      domain.UnitMetersPerSecond,
				Averaging: domain.AveragingTenMinutes,
			})
		}
	}
	return batch
}

func testSite() domain.Site {
	return domain.Site{Name: "test-site", Latitude: 48.85, Longitude: 2.35}
}

// --- tests ---

func TestOrchestrator_Run_HappyPath(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	fetcher := &mockFetcher{source: "meteostat", batch: makeBatch("meteostat", start, 3, 7.5)}
	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, end)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 3)
	assert.Equal(t, "meteostat", res.Records[0].Source)
	assert.InDelta(t, 7.5, res.Records[0].WindspeedMean, 1e-9)

	report, ok := res.Quality["meteostat"]
	require.True(t, ok)
	assert.InDelta(t, 1.0, report.Coverage, 1e-9)
}

func TestOrchestrator_Run_SourceFailureDoesNotAbortSiblings(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	bad := &mockFetcher{source: "meteostat", errs: []error{
		errors.New("401 unauthorized"),
	}}
	good := &mockFetcher{source: "era5", batch: makeBatch("era5", start, 2, 6.0)}

	o := pipeline.New([]pipeline.Fetcher{bad, good}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, end)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "meteostat", res.Failures[0].Source)
	assert.Equal(t, 1, res.Failures[0].Attempts)
	assert.ErrorIs(t, res.Failures[0].Err, domain.ErrSourceFailure)

	// Non-transient errors must not be retried.
	assert.Equal(t, int64(1), bad.calls.Load())

	require.Len(t, res.Records, 2)
	assert.Equal(t, "era5", res.Records[0].Source)
	_, ok := res.Quality["meteostat"]
	assert.False(t, ok)
}

func TestOrchestrator_Run_RetriesTransientThenSucceeds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	fetcher := &mockFetcher{
		source: "meteostat",
		errs: []error{
			pipeline.MarkTransient(errors.New("429 too many requests")),
			pipeline.MarkTransient(errors.New("429 too many requests")),
		},
		batch: makeBatch("meteostat", start, 2, 5.0),
	}

	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, end)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Failures)
	assert.Equal(t, int64(3), fetcher.calls.Load())
}

func TestOrchestrator_Run_TransientExhaustsAttempts(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	transient := pipeline.MarkTransient(errors.New("connection reset"))
	fetcher := &mockFetcher{source: "meteostat", errs: []error{transient, transient, transient}}

	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, results[0].Failures, 1)
	assert.Equal(t, 3, results[0].Failures[0].Attempts)
	assert.ErrorIs(t, results[0].Failures[0].Err, domain.ErrSourceFailure)
	assert.Empty(t, results[0].Records)
}

func TestOrchestrator_Run_EmptyBatchIsFailure(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &mockFetcher{source: "meteostat"} // zero-value batch, no observations
	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, results[0].Failures, 1)
	assert.Contains(t, results[0].Failures[0].Reason, "empty response")
}

func TestOrchestrator_Run_BoundsConcurrency(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	cfg := testConfig()
	cfg.Concurrency = 2

	fetcher := &mockFetcher{
		source: "meteostat",
		batch:  makeBatch("meteostat", start, 2, 5.0),
		delay:  10 * time.Millisecond,
	}
	o := pipeline.New([]pipeline.Fetcher{fetcher}, cfg, clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	sites := make([]domain.Site, 8)
	for i := range sites {
		sites[i] = testSite()
	}

	results, err := o.Run(context.Background(), sites, start, end)
	require.NoError(t, err)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, fetcher.maxSeen.Load(), int64(2))
}

func TestOrchestrator_Run_MergeKeepsActivationOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start

	// Slow first fetcher finishes after the second; merge order must still
	// follow activation order, not completion order.
	slow := &mockFetcher{source: "meteostat", batch: makeBatch("meteostat", start, 1, 5.0), delay: 20 * time.Millisecond}
	fast := &mockFetcher{source: "era5", batch: makeBatch("era5", start, 1, 6.0)}

	o := pipeline.New([]pipeline.Fetcher{slow, fast}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{testSite()}, start, end)
	require.NoError(t, err)

	var order []string
	for _, rec := range results[0].Records {
		order = append(order, rec.Source)
	}
	if diff := cmp.Diff([]string{"meteostat", "era5"}, order); diff != "" {
		t.Errorf("merge order mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_Run_ResolvesNearestCandidateStation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	site := testSite()

	batch := makeBatch("meteostat", start, 1, 5.0)
	batch.Candidates = []domain.Station{
		{ID: "far", Latitude: site.Latitude + 0.5, Longitude: site.Longitude},
		{ID: "near", Latitude: site.Latitude + 0.01, Longitude: site.Longitude},
		{ID: "out-of-range", Latitude: site.Latitude + 5, Longitude: site.Longitude},
	}

	cfg := testConfig()
	cfg.StationTopK = 2
	cfg.MaxStationDistanceKm = 80

	fetcher := &mockFetcher{source: "meteostat", batch: batch}
	o := pipeline.New([]pipeline.Fetcher{fetcher}, cfg, clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	results, err := o.Run(context.Background(), []domain.Site{site}, start, start)
	require.NoError(t, err)
	require.Len(t, results[0].Records, 1)

	st := results[0].Records[0].Station
	require.NotNil(t, st)
	assert.Equal(t, "near", st.ID)
	assert.Greater(t, st.DistanceKm, 0.0)

	report := results[0].Quality["meteostat"]
	assert.Equal(t, st.DistanceKm, report.StationDistanceKm)
}

func TestOrchestrator_Run_ContextCancelled(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &mockFetcher{source: "meteostat", delay: time.Second, batch: makeBatch("meteostat", start, 1, 5.0)}
	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := o.Run(ctx, []domain.Site{testSite()}, start, start.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_CheckReadiness(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	fetcher := &mockFetcher{source: "meteostat", batch: makeBatch("meteostat", start, 1, 5.0)}
	o := pipeline.New([]pipeline.Fetcher{fetcher}, testConfig(), clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	require.Error(t, o.CheckReadiness(context.Background()))

	_, err := o.Run(context.Background(), []domain.Site{testSite()}, start, start)
	require.NoError(t, err)
	assert.NoError(t, o.CheckReadiness(context.Background()))
}
