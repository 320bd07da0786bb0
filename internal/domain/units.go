package domain

import (
	"fmt"
	"math"
)

// DefaultProfileExponent is the power-law exponent for open terrain, used for
// height correction when no site-specific value is configured.
const DefaultProfileExponent = 0.14

// referenceHeight is the canonical anemometer height in meters.
const referenceHeight = 10.0

// Normalizer converts raw observations to canonical units: m/s at 10 m,
// UTC instant, 10-minute-equivalent mean speed.
type Normalizer struct {
	// ProfileExponent is the power-law wind profile exponent used to correct
	// speeds measured at heights other than 10 m. Zero means DefaultProfileExponent.
	ProfileExponent float64

	// AveragingFactor scales hourly-averaged mean speeds to a 10-minute
	// equivalent. Zero or 1 means no scaling. Gusts are never scaled.
	AveragingFactor float64

	// DefaultHeight is assumed when an observation carries no height in
	// meters. Zero means the reference height (no correction, flagged
	// height-uncertain).
	DefaultHeight float64
}

// Normalize rewrites one raw observation into canonical form. It fails only
// when a unit tag is unrecognized; all other oddities are corrected or flagged.
func (n Normalizer) Normalize(raw RawObservation) (NormalizedObservation, error) {
	speed, err := ConvertSpeed(raw.Speed, raw.Unit)
	if err != nil {
		return NormalizedObservation{}, err
	}

	var gust *float64
	if raw.Gust != nil {
		unit := raw.GustUnit
		if unit == "" {
			unit = raw.Unit
		}
		g, err := ConvertSpeed(*raw.Gust, unit)
		if err != nil {
			return NormalizedObservation{}, err
		}
		gust = &g
	}

	height, uncertain := n.resolveHeight(raw.Height)
	if height != referenceHeight {
		factor := heightCorrection(height, n.exponent())
		speed *= factor
		if gust != nil {
			g := *gust * factor
			gust = &g
		}
	}

	if raw.Averaging == AveragingHourly && n.AveragingFactor > 0 && n.AveragingFactor != 1 {
		speed *= n.AveragingFactor
	}

	var direction *float64
	if raw.Direction != nil {
		d := math.Mod(*raw.Direction, 360)
		if d < 0 {
			d += 360
		}
		direction = &d
	}

	return NormalizedObservation{
		Time:            raw.Time.UTC(),
		Speed:           speed,
		Gust:            gust,
		Direction:       direction,
		HeightUncertain: uncertain,
	}, nil
}

func (n Normalizer) exponent() float64 {
	if n.ProfileExponent > 0 {
		return n.ProfileExponent
	}
	return DefaultProfileExponent
}

// resolveHeight returns the measurement height to correct from and whether the
// height was undocumented.
func (n Normalizer) resolveHeight(h *float64) (float64, bool) {
	if h != nil && *h > 0 {
		return *h, false
	}
	if n.DefaultHeight > 0 {
		return n.DefaultHeight, false
	}
	return referenceHeight, true
}

// heightCorrection returns the multiplicative factor bringing a speed measured
// at height h down (or up) to the 10 m reference, per the power-law profile
// v10 = v(h) * (10/h)^alpha.
func heightCorrection(h, alpha float64) float64 {
	return math.Pow(referenceHeight/h, alpha)
}

// ConvertSpeed converts a speed value in the given unit to m/s. It returns
// ErrUnitConversion for unit tags it does not recognize; it never guesses.
func ConvertSpeed(v float64, unit SpeedUnit) (float64, error) {
	switch unit {
	case UnitMetersPerSecond:
		return v, nil
	case UnitKilometersPerHour:
		return v / 3.6, nil
	case UnitKnots:
		return v * 0.514444, nil
	case UnitMilesPerHour:
		return v * 0.44704, nil
	case UnitDeciMetersPerSecond:
		return v / 10, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnitConversion, unit)
	}
}
