// Package domain models wind observation data from heterogeneous
// meteorological providers and reduces it to one comparable daily schema.
//
// # Data Sources
//
// Providers fall into two families. Station-based observation networks
// (Meteostat, NOAA ISD) report measurements taken at a physical anemometer;
// gridded model products (ERA5, NASA POWER, Open-Meteo archive) report values
// interpolated to the site coordinate. Fetchers for both families live outside
// this module and hand the core already-decoded [RawObservation] batches.
//
// # Unit Conventions
//
// Canonical speed is meters per second at a 10 m reference height. Providers
// report in m/s, km/h, knots, mph, or tenths of m/s (NOAA ISD encodes the WND
// speed field in deci-m/s). An unrecognized unit tag fails the observation
// with [ErrUnitConversion]; the unit is never guessed.
//
// Measurement heights other than 10 m are corrected with a power-law wind
// profile, v10 = v(h) * (10/h)^alpha, with a configurable exponent
// (0.14 is the usual open-terrain value). When the height is undocumented the
// observation is taken as-is at 10 m and marked height-uncertain rather than
// rejected.
//
// # Averaging-Period Equivalence
//
// Observed station data is conventionally a 10-minute mean while hourly model
// output smooths over the full hour. To keep sources comparable, hourly means
// are scaled by a configurable 10-minute-equivalence factor (1.10 is the
// conservative default for hourly model data; observed 10-minute data uses 1.0).
//
// # Daily Aggregation
//
// One [DailyRecord] per UTC calendar day per source:
//
//	windspeed_mean      daily MAXIMUM of the normalized mean speeds
//	windspeed_daily_avg daily arithmetic mean of the same values
//	windspeed_gust      daily maximum observed gust, or gust-factor fallback
//	wind_direction      speed-weighted vector average, [0,360)
//	n_hours             count of contributing samples
//
// The rules are fixed, not configurable, so series from different sources stay
// comparable. Days with few samples are emitted and flagged by the quality
// assessor, never silently dropped.
//
// # Gust Fallback
//
// Some sources never report gusts. When no gust was observed over a whole day,
// a synthetic gust of gustFactor x windspeed_mean is recorded with
// GustIsFallback set. Typical factors for a 10-minute mean to 3-second gust
// conversion are 1.35-1.5.
package domain
