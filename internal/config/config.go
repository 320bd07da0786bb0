// Package config loads the engine's tuning surface from an optional YAML file
// and WINDSTATS_-prefixed environment variables, with working defaults for
// every knob.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SourceSettings are the per-source knobs the core consults. The core never
// branches on provider identity beyond looking these up.
type SourceSettings struct {
	// GustFactor synthesizes a gust from the daily max mean when the source
	// reports no gusts (ratio of 3 s gust to 10 min mean).
	GustFactor float64 `mapstructure:"gustfactor"`

	// AveragingFactor scales hourly model means to a 10-minute equivalent.
	AveragingFactor float64 `mapstructure:"averagingfactor"`

	// DefaultHeightM is assumed when observations carry no anemometer
	// height. Zero means 10 m, flagged height-uncertain.
	DefaultHeightM float64 `mapstructure:"defaultheightm"`
}

// SiteConfig declares one location to analyze. A site with zero coordinates
// is resolved by name through the geocoder when geocoding is enabled.
type SiteConfig struct {
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Elevation float64 `mapstructure:"elevation"`
}

// Config holds all engine settings.
type Config struct {
	HTTPAddr        string        `mapstructure:"httpaddr"`
	LogLevel        string        `mapstructure:"loglevel"`
	LogFormat       string        `mapstructure:"logformat"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`

	Sites          []SiteConfig `mapstructure:"sites"`
	EnabledSources []string     `mapstructure:"enabledsources"`
	RangeStart     string       `mapstructure:"rangestart"` // YYYY-MM-DD
	RangeEnd       string       `mapstructure:"rangeend"`   // YYYY-MM-DD, empty means today

	GeocodeEnabled   bool          `mapstructure:"geocodeenabled"`
	GeocodeTimeout   time.Duration `mapstructure:"geocodetimeout"`
	GeocodeCacheSize int           `mapstructure:"geocodecachesize"`

	Concurrency      int           `mapstructure:"concurrency"`
	RetryMaxAttempts int           `mapstructure:"retrymaxattempts"`
	RetryBaseBackoff time.Duration `mapstructure:"retrybasebackoff"`
	RetryMaxBackoff  time.Duration `mapstructure:"retrymaxbackoff"`
	SourceTimeout    time.Duration `mapstructure:"sourcetimeout"`

	ProfileExponent        float64 `mapstructure:"profileexponent"`
	MinDailySamples        int     `mapstructure:"mindailysamples"`
	ExcludeLowCoverageDays bool    `mapstructure:"excludelowcoveragedays"`

	StationTopK          int     `mapstructure:"stationtopk"`
	MaxStationDistanceKm float64 `mapstructure:"maxstationdistancekm"`
	MaxElevationDeltaM   float64 `mapstructure:"maxelevationdeltam"`
	MinCoverage          float64 `mapstructure:"mincoverage"`

	FitMethod             string  `mapstructure:"fitmethod"`
	MinBlockMaxima        int     `mapstructure:"minblockmaxima"`
	ReturnPeriods         []int   `mapstructure:"returnperiods"`
	BuildingCodeThreshold float64 `mapstructure:"buildingcodethreshold"`

	Sources map[string]SourceSettings `mapstructure:"sources"`
}

// Load reads configuration from config.yaml (when present) and environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("httpaddr", ":8080")
	v.SetDefault("loglevel", "info")
	v.SetDefault("logformat", "json")
	v.SetDefault("shutdowntimeout", "10s")

	v.SetDefault("enabledsources", []string{"meteostat", "noaa_isd", "era5", "nasa_power", "openmeteo"})
	v.SetDefault("rangestart", "2005-01-01")
	v.SetDefault("rangeend", "")

	v.SetDefault("geocodeenabled", false)
	v.SetDefault("geocodetimeout", "5s")
	v.SetDefault("geocodecachesize", 128)

	v.SetDefault("concurrency", 4)
	v.SetDefault("retrymaxattempts", 3)
	v.SetDefault("retrybasebackoff", "200ms")
	v.SetDefault("retrymaxbackoff", "5s")
	v.SetDefault("sourcetimeout", "2m")

	v.SetDefault("profileexponent", 0.14)
	v.SetDefault("mindailysamples", 18)
	v.SetDefault("excludelowcoveragedays", false)

	v.SetDefault("stationtopk", 2)
	v.SetDefault("maxstationdistancekm", 80.0)
	v.SetDefault("maxelevationdeltam", 300.0)
	v.SetDefault("mincoverage", 0.6)

	v.SetDefault("fitmethod", "mle")
	v.SetDefault("minblockmaxima", 5)
	v.SetDefault("returnperiods", []int{50, 100, 200})
	v.SetDefault("buildingcodethreshold", 25.0)

	// Observed 10-minute sources pass through; hourly model products get the
	// conservative 1.10 ten-minute-equivalence factor.
	v.SetDefault("sources", map[string]SourceSettings{
		"meteostat":  {GustFactor: 1.4, AveragingFactor: 1.0},
		"noaa_isd":   {GustFactor: 1.4, AveragingFactor: 1.0},
		"era5":       {GustFactor: 1.4, AveragingFactor: 1.10},
		"nasa_power": {GustFactor: 1.4, AveragingFactor: 1.10},
		"openmeteo":  {GustFactor: 1.4, AveragingFactor: 1.10},
	})

	v.SetEnvPrefix("WINDSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, the defaults cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.RetryMaxAttempts < 1 {
		return errors.New("retrymaxattempts must be at least 1")
	}
	if c.RetryBaseBackoff <= 0 || c.RetryMaxBackoff < c.RetryBaseBackoff {
		return errors.New("retry backoff schedule is invalid")
	}
	if c.ProfileExponent <= 0 || c.ProfileExponent >= 1 {
		return fmt.Errorf("profileexponent %g is outside (0,1)", c.ProfileExponent)
	}
	if c.MinCoverage < 0 || c.MinCoverage > 1 {
		return fmt.Errorf("mincoverage %g is outside [0,1]", c.MinCoverage)
	}
	if c.FitMethod != "mle" && c.FitMethod != "moments" {
		return fmt.Errorf("fitmethod %q must be mle or moments", c.FitMethod)
	}
	if c.MinBlockMaxima < 2 {
		return errors.New("minblockmaxima must be at least 2")
	}
	for _, p := range c.ReturnPeriods {
		if p <= 1 {
			return fmt.Errorf("return period %d must exceed 1 year", p)
		}
	}
	if _, err := time.Parse("2006-01-02", c.RangeStart); err != nil {
		return fmt.Errorf("rangestart %q is not a YYYY-MM-DD date", c.RangeStart)
	}
	if c.RangeEnd != "" {
		if _, err := time.Parse("2006-01-02", c.RangeEnd); err != nil {
			return fmt.Errorf("rangeend %q is not a YYYY-MM-DD date", c.RangeEnd)
		}
	}
	return nil
}

// Range resolves the analysis window. An unset end means yesterday relative
// to now, the last day a full day of observations can exist for.
func (c *Config) Range(now time.Time) (start, end time.Time) {
	start, _ = time.Parse("2006-01-02", c.RangeStart)
	if c.RangeEnd != "" {
		end, _ = time.Parse("2006-01-02", c.RangeEnd)
		return start, end
	}
	return start, now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)
}

// SourceSettingsFor returns the settings for a source id, falling back to a
// conservative default (gust factor 1.4, no averaging correction) for sources
// the configuration does not name.
func (c *Config) SourceSettingsFor(source string) SourceSettings {
	if s, ok := c.Sources[source]; ok {
		return s
	}
	return SourceSettings{GustFactor: 1.4, AveragingFactor: 1.0}
}
