// Package quality computes advisory coverage and anomaly metrics over an
// assembled daily series. It is a pure function of its inputs: it never
// mutates records, and a report is recomputed on demand, never persisted.
package quality

import (
	"time"

	"github.com/sitewind/windstats/internal/domain"
)

// Gap is a run of consecutive requested days with no record.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"` // inclusive
	Days  int       `json:"days"`
}

// Report summarizes the data quality of one source's daily series over a
// requested window. Advisory metadata only; the orchestrator uses it to
// decide whether a source counts as usable for a site.
type Report struct {
	Source       string    `json:"source"`
	RangeStart   time.Time `json:"range_start"`
	RangeEnd     time.Time `json:"range_end"` // inclusive
	DaysExpected int       `json:"days_expected"`
	DaysPresent  int       `json:"days_present"`
	Coverage     float64   `json:"coverage"` // DaysPresent / DaysExpected, in [0,1]

	Gaps            []Gap       `json:"gaps,omitempty"`
	LowCoverageDays []time.Time `json:"low_coverage_days,omitempty"`

	StationDistanceKm       float64 `json:"station_distance_km,omitempty"`
	StationDistanceExceeded bool    `json:"station_distance_exceeded,omitempty"`
	ElevationDeltaM         float64 `json:"elevation_delta_m,omitempty"`
	ElevationDeltaExceeded  bool    `json:"elevation_delta_exceeded,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Usable reports whether the series clears the given coverage floor. A source
// below the floor is still merged; callers decide what to do with the flag.
func (r Report) Usable(minCoverage float64) bool {
	return r.Coverage >= minCoverage
}

// Assessor holds the thresholds quality flags are judged against.
type Assessor struct {
	// MinDailySamples is the sample count below which a day is flagged
	// low-coverage (e.g. 18 of 24 expected hourly samples). Zero disables
	// the flag.
	MinDailySamples int

	// MaxStationDistanceKm flags a station-based series whose station is
	// farther than this from the site. Zero disables the flag.
	MaxStationDistanceKm float64

	// MaxElevationDeltaM flags a station whose elevation differs from the
	// site's by more than this. Zero disables the flag.
	MaxElevationDeltaM float64
}

// Assess computes the quality report for one source's records over the
// requested [start, end] window (both inclusive, UTC days). Records outside
// the window are ignored.
func (a Assessor) Assess(source string, records []domain.DailyRecord, site domain.Site, start, end time.Time) Report {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)

	report := Report{
		Source:      source,
		RangeStart:  start,
		RangeEnd:    end,
		GeneratedAt: domain.Now(),
	}
	if end.Before(start) {
		return report
	}
	report.DaysExpected = int(end.Sub(start).Hours()/24) + 1

	present := make(map[time.Time]bool, len(records))
	var station *domain.Station
	for _, rec := range records {
		day := rec.Date.UTC().Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		present[day] = true
		if a.MinDailySamples > 0 && rec.NHours < a.MinDailySamples {
			report.LowCoverageDays = append(report.LowCoverageDays, day)
		}
		if station == nil {
			station = rec.Station
		}
	}

	report.DaysPresent = len(present)
	report.Coverage = float64(report.DaysPresent) / float64(report.DaysExpected)
	report.Gaps = findGaps(present, start, end)

	if station != nil {
		report.StationDistanceKm = station.DistanceKm
		if a.MaxStationDistanceKm > 0 && station.DistanceKm > a.MaxStationDistanceKm {
			report.StationDistanceExceeded = true
		}
		delta := station.Elevation - site.Elevation
		if delta < 0 {
			delta = -delta
		}
		report.ElevationDeltaM = delta
		if a.MaxElevationDeltaM > 0 && delta > a.MaxElevationDeltaM {
			report.ElevationDeltaExceeded = true
		}
	}

	return report
}

// findGaps walks the requested window day by day and collects runs of missing
// days as (start, end, length) spans.
func findGaps(present map[time.Time]bool, start, end time.Time) []Gap {
	var gaps []Gap
	var open *Gap

	for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
		if present[day] {
			if open != nil {
				gaps = append(gaps, *open)
				open = nil
			}
			continue
		}
		if open == nil {
			open = &Gap{Start: day}
		}
		open.End = day
		open.Days++
	}
	if open != nil {
		gaps = append(gaps, *open)
	}
	return gaps
}
