package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// vanishingResultant is the squared magnitude below which a direction vector
// sum is treated as undefined (e.g. two equal-speed opposite winds).
const vanishingResultant = 1e-9

// Aggregator reduces normalized observations into one DailyRecord per UTC
// calendar day. The aggregation rules are fixed so series from different
// sources stay comparable; only the gust fallback factor varies per source.
type Aggregator struct {
	// GustFactor is the ratio of short-duration gust to mean wind used to
	// synthesize a gust when the source reported none all day. Zero means
	// no fallback: the gust field stays at the daily max mean.
	GustFactor float64
}

// AggregateDaily groups observations by UTC calendar day and emits one record
// per day that has at least one sample, ordered by date ascending. Days with
// no samples are simply absent; the quality assessor reports them as gaps.
func (a Aggregator) AggregateDaily(source string, station *Station, obs []NormalizedObservation) []DailyRecord {
	byDay := make(map[time.Time][]NormalizedObservation)
	for _, o := range obs {
		day := o.Time.UTC().Truncate(24 * time.Hour)
		byDay[day] = append(byDay[day], o)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	records := make([]DailyRecord, 0, len(days))
	for _, day := range days {
		rec, err := a.aggregateDay(source, station, day, byDay[day])
		if err != nil {
			continue // unreachable: every grouped day has samples
		}
		records = append(records, rec)
	}
	return records
}

// AggregateDay builds the record for one explicitly requested day. It fails
// with ErrInsufficientData when the day has zero observations; it never
// fabricates a day.
func (a Aggregator) AggregateDay(source string, station *Station, day time.Time, obs []NormalizedObservation) (DailyRecord, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	inDay := make([]NormalizedObservation, 0, len(obs))
	for _, o := range obs {
		if o.Time.UTC().Truncate(24 * time.Hour).Equal(day) {
			inDay = append(inDay, o)
		}
	}
	return a.aggregateDay(source, station, day, inDay)
}

func (a Aggregator) aggregateDay(source string, station *Station, day time.Time, obs []NormalizedObservation) (DailyRecord, error) {
	if len(obs) == 0 {
		return DailyRecord{}, fmt.Errorf("%w: %s %s", ErrInsufficientData, source, day.Format("2006-01-02"))
	}

	var (
		maxMean  float64
		sumMean  float64
		maxGust  float64
		gustSeen bool
	)
	for i, o := range obs {
		if i == 0 || o.Speed > maxMean {
			maxMean = o.Speed
		}
		sumMean += o.Speed
		if o.Gust != nil {
			if !gustSeen || *o.Gust > maxGust {
				maxGust = *o.Gust
			}
			gustSeen = true
		}
	}

	rec := DailyRecord{
		Date:              day,
		WindspeedMean:     maxMean,
		WindspeedDailyAvg: sumMean / float64(len(obs)),
		NHours:            len(obs),
		Source:            source,
		Station:           station,
		WindDirection:     vectorAverageDirection(obs),
	}

	if gustSeen {
		rec.WindspeedGust = maxGust
	} else if a.GustFactor > 0 {
		rec.WindspeedGust = a.GustFactor * maxMean
		rec.GustIsFallback = true
	} else {
		rec.WindspeedGust = maxMean
		rec.GustIsFallback = true
	}

	return rec, nil
}

// vectorAverageDirection computes the speed-weighted circular mean of the
// day's wind directions. Each direction becomes a unit vector scaled by that
// observation's speed; the resulting angle avoids the wrap-around error of an
// arithmetic mean (10 deg and 350 deg average to 0, not 180). Returns nil when
// no observation carries a direction or the resultant vanishes.
func vectorAverageDirection(obs []NormalizedObservation) *float64 {
	var x, y float64
	any := false
	for _, o := range obs {
		if o.Direction == nil {
			continue
		}
		rad := *o.Direction * math.Pi / 180
		x += o.Speed * math.Cos(rad)
		y += o.Speed * math.Sin(rad)
		any = true
	}
	if !any || x*x+y*y < vanishingResultant {
		return nil
	}
	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	return &deg
}
