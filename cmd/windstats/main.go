package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/sitewind/windstats/internal/adapter/geocode"
	httpadapter "github.com/sitewind/windstats/internal/adapter/http"
	"github.com/sitewind/windstats/internal/adapter/synthetic"
	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/pipeline"
)

func main() {
	// Optional .env for local development; environment wins when both set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sites, err := resolveSites(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to resolve sites", "error", err)
		os.Exit(1)
	}
	if len(sites) == 0 {
		logger.Error("no sites configured")
		os.Exit(1)
	}

	fetchers := make([]pipeline.Fetcher, 0, len(cfg.EnabledSources))
	for _, source := range cfg.EnabledSources {
		provider, err := synthetic.New(source)
		if err != nil {
			logger.Error("unknown source", "source", source, "error", err)
			os.Exit(1)
		}
		fetchers = append(fetchers, provider)
	}

	orchestrator := pipeline.New(fetchers, cfg, clock, logger, metrics)
	analyzer := pipeline.NewAnalyzer(cfg, logger, metrics)
	results := &httpadapter.ResultStore{}

	srv := httpadapter.NewServer(cfg.HTTPAddr, orchestrator, results, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		start, end := cfg.Range(clock.Now())
		logger.Info("analysis run starting",
			"sites", len(sites),
			"sources", cfg.EnabledSources,
			"start", start.Format("2006-01-02"),
			"end", end.Format("2006-01-02"),
		)

		siteResults, err := orchestrator.Run(ctx, sites, start, end)
		if err != nil {
			logger.Error("analysis run aborted", "error", err)
			return
		}

		analyses := make([]pipeline.SiteAnalysis, len(siteResults))
		for i, res := range siteResults {
			analyses[i] = analyzer.Analyze(res)
		}
		results.Publish(analyses, clock.Now())
		logger.Info("analysis run complete", "sites", len(analyses))
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// resolveSites turns configured sites into domain sites, geocoding any that
// carry a name but no coordinates.
func resolveSites(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]domain.Site, error) {
	var geocoder geocode.Geocoder
	if cfg.GeocodeEnabled {
		client := geocode.NewClient(cfg.GeocodeTimeout, logger)
		geocoder = geocode.NewCached(client, cfg.GeocodeCacheSize)
		logger.Info("geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	}

	sites := make([]domain.Site, 0, len(cfg.Sites))
	for _, sc := range cfg.Sites {
		site := domain.Site{
			Name:      sc.Name,
			Latitude:  sc.Latitude,
			Longitude: sc.Longitude,
			Elevation: sc.Elevation,
		}
		if site.Latitude == 0 && site.Longitude == 0 {
			if geocoder == nil {
				return nil, errors.New("site " + sc.Name + " has no coordinates and geocoding is disabled")
			}
			result, err := geocoder.Geocode(ctx, sc.Name)
			if err != nil {
				return nil, err
			}
			if result.Name == "" {
				return nil, errors.New("site " + sc.Name + " could not be geocoded")
			}
			site.Latitude = result.Latitude
			site.Longitude = result.Longitude
			site.Elevation = result.Elevation
			logger.Info("site geocoded", "site", sc.Name, "lat", site.Latitude, "lon", site.Longitude)
		}
		sites = append(sites, site)
	}
	return sites, nil
}
