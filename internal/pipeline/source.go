package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/quality"
	"github.com/sitewind/windstats/internal/station"
)

// SourceData is one source's contribution to a site: its daily series plus
// the quality report over the requested window.
type SourceData struct {
	Source  string
	Records []domain.DailyRecord
	Quality quality.Report
}

// sourcePipeline runs the sequential, side-effect-free per-source steps:
// normalize, aggregate, assess. It holds no mutable state between calls.
type sourcePipeline struct {
	normalizer domain.Normalizer
	aggregator domain.Aggregator
	assessor   quality.Assessor
	resolver   station.Resolver
	logger     *slog.Logger
	metrics    *observability.Metrics
}

func newSourcePipeline(cfg *config.Config, source string, logger *slog.Logger, metrics *observability.Metrics) *sourcePipeline {
	settings := cfg.SourceSettingsFor(source)
	return &sourcePipeline{
		normalizer: domain.Normalizer{
			ProfileExponent: cfg.ProfileExponent,
			AveragingFactor: settings.AveragingFactor,
			DefaultHeight:   settings.DefaultHeightM,
		},
		aggregator: domain.Aggregator{GustFactor: settings.GustFactor},
		assessor: quality.Assessor{
			MinDailySamples:      cfg.MinDailySamples,
			MaxStationDistanceKm: cfg.MaxStationDistanceKm,
			MaxElevationDeltaM:   cfg.MaxElevationDeltaM,
		},
		resolver: station.Resolver{
			TopK:          cfg.StationTopK,
			MaxDistanceKm: cfg.MaxStationDistanceKm,
		},
		logger:  logger.With("source", source),
		metrics: metrics,
	}
}

// process reduces one fetched batch to daily records and a quality report.
// Observations with unrecognized units are dropped individually and counted;
// they never fail the batch.
func (p *sourcePipeline) process(batch domain.ObservationBatch, site domain.Site, start, end time.Time) SourceData {
	if batch.Station == nil && len(batch.Candidates) > 0 {
		ranked := p.resolver.Nearest(site, batch.Candidates)
		if len(ranked) > 0 {
			batch.Station = &ranked[0]
			p.logger.Debug("station resolved",
				"station", batch.Station.ID,
				"distance_km", batch.Station.DistanceKm,
				"candidates", len(batch.Candidates),
			)
		} else {
			p.logger.Warn("no candidate station within range", "candidates", len(batch.Candidates))
		}
	}

	normalized := make([]domain.NormalizedObservation, 0, len(batch.Observations))
	for _, raw := range batch.Observations {
		obs, err := p.normalizer.Normalize(raw)
		if err != nil {
			if errors.Is(err, domain.ErrUnitConversion) {
				p.logger.Warn("dropping observation", "error", err, "time", raw.Time)
				p.metrics.ConversionErrors.Inc()
				continue
			}
			p.logger.Warn("dropping observation", "error", err)
			continue
		}
		normalized = append(normalized, obs)
	}
	p.metrics.ObservationsNormalized.Add(float64(len(normalized)))

	records := p.aggregator.AggregateDaily(batch.Source, batch.Station, normalized)
	p.metrics.RecordsAggregated.Add(float64(len(records)))

	report := p.assessor.Assess(batch.Source, records, site, start, end)

	return SourceData{Source: batch.Source, Records: records, Quality: report}
}
