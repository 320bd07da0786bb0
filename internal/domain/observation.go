package domain

import "time"

// SpeedUnit identifies the unit a source reports wind speeds in.
type SpeedUnit string

const (
	UnitMetersPerSecond     SpeedUnit = "m/s"
	UnitKilometersPerHour   SpeedUnit = "km/h"
	UnitKnots               SpeedUnit = "kn"
	UnitMilesPerHour        SpeedUnit = "mph"
	UnitDeciMetersPerSecond SpeedUnit = "dm/s" // NOAA ISD encodes speeds as tenths of m/s
)

// AveragingPeriod tags the time window a reported mean speed was averaged over.
type AveragingPeriod string

const (
	AveragingTenMinutes AveragingPeriod = "10min"
	AveragingHourly     AveragingPeriod = "1h"
	AveragingDaily      AveragingPeriod = "24h"
)

// RawObservation is one sub-daily (or daily) sample exactly as a fetcher
// decoded it from the provider. Immutable once handed to the normalizer.
type RawObservation struct {
	Time      time.Time // source-local or UTC; normalized to UTC downstream
	Speed     float64
	Unit      SpeedUnit
	Averaging AveragingPeriod
	Gust      *float64  // nil when the source reports no gust
	GustUnit  SpeedUnit // empty means same as Unit
	Direction *float64  // degrees, nil when unreported
	Height    *float64  // anemometer height in meters, nil when undocumented
}

// NormalizedObservation is a RawObservation rewritten to canonical form:
// m/s at 10 m reference height, UTC instant, 10-minute-equivalent mean.
type NormalizedObservation struct {
	Time            time.Time
	Speed           float64
	Gust            *float64
	Direction       *float64
	HeightUncertain bool // set when the source height was undocumented
}

// Station is a physical observing point. Read-only reference data; records
// reference it but never own it.
type Station struct {
	ID               string  `json:"station_id"`
	Name             string  `json:"station_name"`
	Latitude         float64 `json:"station_latitude"`
	Longitude        float64 `json:"station_longitude"`
	Elevation        float64 `json:"station_elevation"`
	AnemometerHeight float64 `json:"-"` // meters, 0 means undocumented (assume 10)
	Timezone         string  `json:"timezone,omitempty"`
	RecordBegin      int     `json:"-"` // first year of record, 0 when unknown
	RecordEnd        int     `json:"-"` // last year of record, 0 when unknown
	DistanceKm       float64 `json:"station_distance_km"`
}

// CoverageYears returns the length of the station's declared record in years,
// or 0 when the record span is undocumented.
func (s Station) CoverageYears() int {
	if s.RecordBegin == 0 || s.RecordEnd == 0 || s.RecordEnd < s.RecordBegin {
		return 0
	}
	return s.RecordEnd - s.RecordBegin + 1
}

// DailyRecord is one UTC calendar day for one source at one site or station.
// Created by the aggregator and never mutated afterwards; the orchestrator
// merges records across sources by concatenation, not by rewriting them.
type DailyRecord struct {
	Date              time.Time `json:"time"`
	WindspeedMean     float64   `json:"windspeed_mean"`      // daily MAX of mean wind
	WindspeedDailyAvg float64   `json:"windspeed_daily_avg"` // daily average of mean wind, informative
	WindspeedGust     float64   `json:"windspeed_gust"`
	GustIsFallback    bool      `json:"gust_is_fallback"`
	WindDirection     *float64  `json:"wind_direction,omitempty"` // vector average, [0,360); nil when undefined
	NHours            int       `json:"n_hours"`
	Source            string    `json:"source"`
	Station           *Station  `json:"station,omitempty"`
}

// Site is a location under study, identified by name and WGS-84 coordinates.
type Site struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// ObservationBatch is the unit a fetcher hands to the core: raw samples for
// one source, optionally tied to a physical station. A fetcher that knows
// several nearby stations leaves Station nil and lists Candidates instead;
// the pipeline resolves the best one.
type ObservationBatch struct {
	Source       string
	Station      *Station
	Candidates   []Station
	Observations []RawObservation
}
