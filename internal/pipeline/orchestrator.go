package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/quality"
)

// RetryPolicy bounds how fetch failures are retried: exponential backoff from
// BaseBackoff, doubling per attempt, capped at MaxBackoff, up to MaxAttempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// SourceFailure records why a source was excluded from a site's dataset.
// Failures are part of the result, never silently swallowed.
type SourceFailure struct {
	Source   string `json:"source"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// SiteResult is one site's merged dataset: each source's daily series kept
// distinct and source-tagged, concatenated in source activation order, plus
// per-source quality reports and recorded failures. Exposed only after every
// per-source task for the site has completed or failed.
type SiteResult struct {
	Site     domain.Site                `json:"site"`
	Records  []domain.DailyRecord       `json:"records"`
	Quality  map[string]quality.Report  `json:"quality"`
	Failures []SourceFailure            `json:"failures,omitempty"`
}

// Orchestrator fans (source x site) work units out over a bounded worker
// pool. It is the only component that runs sources concurrently; each
// per-source pipeline is sequential and pure.
type Orchestrator struct {
	fetchers []Fetcher
	cfg      *config.Config
	retry    RetryPolicy
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates an Orchestrator over the activated fetchers. Pass a fake clock
// in tests to make backoff instantaneous.
func New(fetchers []Fetcher, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		fetchers: fetchers,
		cfg:      cfg,
		retry: RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff,
			MaxBackoff:  cfg.RetryMaxBackoff,
		},
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one site has been fully processed.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no site has been processed yet")
	}
	return nil
}

// Run processes every (source, site) pair and returns one result per site, in
// input order. A failed source is recorded on its site and excluded from the
// merge; it never aborts sibling sources or the site. Run returns an error
// only when the context is cancelled before all work finishes.
func (o *Orchestrator) Run(ctx context.Context, sites []domain.Site, start, end time.Time) ([]SiteResult, error) {
	o.metrics.RunActive.Set(1)
	defer o.metrics.RunActive.Set(0)

	// outcomes[siteIdx][fetcherIdx] is written once by one worker; the mutex
	// serializes writes, and results are read only after wg.Wait.
	type slot struct {
		data    *SourceData
		failure *SourceFailure
	}
	outcomes := make([][]slot, len(sites))
	for i := range outcomes {
		outcomes[i] = make([]slot, len(o.fetchers))
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, o.cfg.Concurrency)
	)

	for si, site := range sites {
		for fi, fetcher := range o.fetchers {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return nil, ctx.Err()
			}

			wg.Add(1)
			go func(si, fi int, site domain.Site, fetcher Fetcher) {
				defer wg.Done()
				defer func() { <-sem }()

				data, failure := o.runSource(ctx, fetcher, site, start, end)

				mu.Lock()
				outcomes[si][fi] = slot{data: data, failure: failure}
				mu.Unlock()
			}(si, fi, site, fetcher)
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Single-threaded merge: concatenate per-source series in activation
	// order so results are deterministic.
	results := make([]SiteResult, len(sites))
	for si, site := range sites {
		result := SiteResult{Site: site, Quality: make(map[string]quality.Report)}
		for fi := range o.fetchers {
			s := outcomes[si][fi]
			switch {
			case s.failure != nil:
				result.Failures = append(result.Failures, *s.failure)
			case s.data != nil:
				result.Records = append(result.Records, s.data.Records...)
				result.Quality[s.data.Source] = s.data.Quality
			}
		}
		results[si] = result
		o.ready.Store(true)
	}
	return results, nil
}

// runSource executes one (source, site) unit: fetch with retries, then the
// sequential normalize-aggregate-assess pipeline. All failure modes collapse
// into a recorded SourceFailure.
func (o *Orchestrator) runSource(ctx context.Context, fetcher Fetcher, site domain.Site, start, end time.Time) (*SourceData, *SourceFailure) {
	started := o.clock.Now()
	source := fetcher.Source()
	logger := o.logger.With("source", source, "site", site.Name)

	batch, attempts, err := o.fetchWithRetry(ctx, fetcher, site, start, end)
	if err == nil && len(batch.Observations) == 0 {
		err = fmt.Errorf("%w: empty response", domain.ErrSourceFailure)
	}
	if err != nil {
		logger.Error("source excluded", "error", err, "attempts", attempts)
		o.metrics.SourcesFailed.Inc()
		return nil, &SourceFailure{Source: source, Attempts: attempts, Reason: err.Error(), Err: err}
	}

	data := newSourcePipeline(o.cfg, source, logger, o.metrics).process(batch, site, start, end)
	if !data.Quality.Usable(o.cfg.MinCoverage) {
		logger.Warn("source below coverage floor, kept with flag",
			"coverage", data.Quality.Coverage,
			"min_coverage", o.cfg.MinCoverage,
		)
	}

	o.metrics.SourcesSucceeded.Inc()
	o.metrics.SourceDuration.Observe(o.clock.Since(started).Seconds())
	logger.Info("source processed",
		"records", len(data.Records),
		"coverage", data.Quality.Coverage,
		"attempts", attempts,
	)
	return &data, nil
}

// fetchWithRetry calls the fetcher with a per-source timeout, retrying
// transient failures with exponential backoff. A per-source timeout fails
// only that source's pipeline; sibling sources keep running.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, fetcher Fetcher, site domain.Site, start, end time.Time) (domain.ObservationBatch, int, error) {
	backoff := o.retry.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		fetchCtx := ctx
		cancel := context.CancelFunc(func() {})
		if o.cfg.SourceTimeout > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, o.cfg.SourceTimeout)
		}

		batch, err := fetcher.Fetch(fetchCtx, site, start, end)
		cancel()
		if err == nil {
			return batch, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == o.retry.MaxAttempts {
			return domain.ObservationBatch{}, attempt,
				fmt.Errorf("%w after %d attempt(s): %v", domain.ErrSourceFailure, attempt, lastErr)
		}

		o.metrics.FetchRetries.Inc()
		if !o.sleep(ctx, backoff) {
			return domain.ObservationBatch{}, attempt,
				fmt.Errorf("%w: cancelled during backoff: %v", domain.ErrSourceFailure, lastErr)
		}
		backoff = nextBackoff(backoff, o.retry.MaxBackoff)
	}

	return domain.ObservationBatch{}, o.retry.MaxAttempts,
		fmt.Errorf("%w: %v", domain.ErrSourceFailure, lastErr)
}

// sleep waits for the backoff duration on the injected clock, returning false
// if the context is cancelled first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := o.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
