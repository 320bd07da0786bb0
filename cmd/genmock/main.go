// Command genmock runs the full analysis pipeline over the deterministic
// synthetic providers and writes JSON fixtures for test suites and API
// consumers. It uses the actual pipeline packages so fixtures match real
// engine behavior, and a fixed clock so timestamps are reproducible.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -site lyon -lat 45.76 -lon 4.84 -elev 170 \
//	  -start 2015-01-01 -end 2024-12-31 \
//	  -records-out data/mock/lyon_daily.json \
//	  -analyses-out data/mock/lyon_analyses.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sitewind/windstats/internal/adapter/synthetic"
	"github.com/sitewind/windstats/internal/config"
	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/observability"
	"github.com/sitewind/windstats/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	name := flag.String("site", "lyon", "site name")
	lat := flag.Float64("lat", 45.76, "site latitude")
	lon := flag.Float64("lon", 4.84, "site longitude")
	elev := flag.Float64("elev", 170, "site elevation in meters")
	startStr := flag.String("start", "2015-01-01", "range start (YYYY-MM-DD)")
	endStr := flag.String("end", "2024-12-31", "range end (YYYY-MM-DD)")
	recordsOut := flag.String("records-out", "", "output path for daily records fixture")
	analysesOut := flag.String("analyses-out", "", "output path for analyses fixture")
	flag.Parse()

	if *recordsOut == "" || *analysesOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -records-out, -analyses-out")
	}

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		return fmt.Errorf("parsing -start: %w", err)
	}
	end, err := time.Parse("2006-01-02", *endStr)
	if err != nil {
		return fmt.Errorf("parsing -end: %w", err)
	}

	// Fix the clock so GeneratedAt/ComputedAt timestamps are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.January, 2, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fetchers := make([]pipeline.Fetcher, 0, len(synthetic.Sources()))
	for _, source := range synthetic.Sources() {
		provider, err := synthetic.New(source)
		if err != nil {
			return err
		}
		fetchers = append(fetchers, provider)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()
	site := domain.Site{Name: *name, Latitude: *lat, Longitude: *lon, Elevation: *elev}

	orchestrator := pipeline.New(fetchers, cfg, clockwork.NewRealClock(), logger, metrics)
	results, err := orchestrator.Run(context.Background(), []domain.Site{site}, start, end)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}
	result := results[0]
	for _, failure := range result.Failures {
		log.Printf("source %s failed: %s", failure.Source, failure.Reason)
	}
	log.Printf("daily records: %d", len(result.Records))

	analysis := pipeline.NewAnalyzer(cfg, logger, metrics).Analyze(result)
	for _, sf := range analysis.Fits {
		if sf.Error != "" {
			log.Printf("fit %s/%s unavailable: %s", sf.Source, sf.Variable, sf.Error)
			continue
		}
		log.Printf("fit %s/%s: mu=%.2f beta=%.2f n=%d", sf.Source, sf.Variable, sf.Fit.Location, sf.Fit.Scale, sf.Fit.SampleSize)
	}

	if err := writeJSON(*recordsOut, result.Records); err != nil {
		return fmt.Errorf("writing records fixture: %w", err)
	}
	log.Printf("wrote records fixture: %s", *recordsOut)

	if err := writeJSON(*analysesOut, []pipeline.SiteAnalysis{analysis}); err != nil {
		return fmt.Errorf("writing analyses fixture: %w", err)
	}
	log.Printf("wrote analyses fixture: %s", *analysesOut)

	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
