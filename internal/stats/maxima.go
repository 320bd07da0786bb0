// Package stats fits extreme-value statistics to daily wind series and
// computes engineering return-period design speeds, plus the descriptive and
// cross-source comparison summaries reports are built from.
package stats

import (
	"sort"
	"time"

	"github.com/sitewind/windstats/internal/domain"
)

// Block is the fixed time span a maximum is extracted over.
type Block string

const (
	BlockAnnual  Block = "annual"
	BlockMonthly Block = "monthly"
)

// Maximum is the largest value observed within one block.
type Maximum struct {
	Block string    `json:"block"` // "2014" or "2014-03"
	Date  time.Time `json:"date"`  // day the maximum occurred
	Value float64   `json:"value"`
}

// MeanSpeed selects the daily maximum of mean wind from a record.
func MeanSpeed(rec domain.DailyRecord) float64 { return rec.WindspeedMean }

// GustSpeed selects the daily maximum gust from a record.
func GustSpeed(rec domain.DailyRecord) float64 { return rec.WindspeedGust }

// MaximaOptions controls block-maxima extraction.
type MaximaOptions struct {
	// Block is the extraction span. Empty means BlockAnnual.
	Block Block

	// MinDailySamples excludes days with fewer contributing samples from
	// the maxima, when > 0. Whether low-coverage days should be excluded or
	// merely flagged is a policy choice; both behaviors are reachable here.
	MinDailySamples int
}

// BlockMaxima extracts the largest selected value per block from a daily
// series. Non-positive values are skipped: a zero wind day carries no extreme
// information and sources use zero as a missing-value stand-in. Result is
// ordered by block ascending.
func BlockMaxima(records []domain.DailyRecord, value func(domain.DailyRecord) float64, opts MaximaOptions) []Maximum {
	block := opts.Block
	if block == "" {
		block = BlockAnnual
	}
	layout := "2006"
	if block == BlockMonthly {
		layout = "2006-01"
	}

	best := make(map[string]Maximum)
	order := make([]string, 0)
	for _, rec := range records {
		if opts.MinDailySamples > 0 && rec.NHours < opts.MinDailySamples {
			continue
		}
		v := value(rec)
		if v <= 0 {
			continue
		}
		key := rec.Date.UTC().Format(layout)
		cur, seen := best[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || v > cur.Value {
			best[key] = Maximum{Block: key, Date: rec.Date, Value: v}
		}
	}

	maxima := make([]Maximum, 0, len(order))
	for _, key := range order {
		maxima = append(maxima, best[key])
	}
	sortMaxima(maxima)
	return maxima
}

// Values strips a maxima slice down to the raw fit sample.
func Values(maxima []Maximum) []float64 {
	out := make([]float64, len(maxima))
	for i, m := range maxima {
		out[i] = m.Value
	}
	return out
}

func sortMaxima(maxima []Maximum) {
	// Block keys are zero-padded date prefixes, so lexicographic order is
	// chronological order.
	sort.Slice(maxima, func(i, j int) bool { return maxima[i].Block < maxima[j].Block })
}
