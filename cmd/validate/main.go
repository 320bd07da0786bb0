// Command validate performs integrity checks on generated analysis fixtures:
// the daily records JSON and the analyses JSON written by genmock (or served
// at /v1/analyses). It verifies record well-formedness, fit plausibility,
// quality report bounds, and cross-source comparison consistency.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -records data/mock/lyon_daily.json \
//	  -analyses data/mock/lyon_analyses.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sitewind/windstats/internal/domain"
	"github.com/sitewind/windstats/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	recordsPath := flag.String("records", "", "path to daily records JSON fixture")
	analysesPath := flag.String("analyses", "", "path to analyses JSON fixture")
	flag.Parse()

	if *recordsPath == "" || *analysesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*recordsPath, *analysesPath))
}

func run(recordsPath, analysesPath string) int {
	records, err := loadJSON[domain.DailyRecord](recordsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading records: %v\n", err)
		return 1
	}
	analyses, err := loadJSON[pipeline.SiteAnalysis](analysesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading analyses: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRecords(records),
		validateFits(analyses),
		validateQuality(analyses),
		validateComparisons(analyses),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\n%d/%d phases passed (%d records, %d sites)\n",
		len(phases)-failed, len(phases), len(records), len(analyses))
	if failed > 0 {
		return 1
	}
	return 0
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func validateRecords(records []domain.DailyRecord) *phase {
	p := &phase{name: "daily records"}
	if len(records) == 0 {
		p.errorf("no records")
		return p
	}

	lastPerSource := map[string]time.Time{}
	for i, rec := range records {
		if rec.Source == "" {
			p.errorf("record %d: missing source", i)
		}
		if !rec.Date.Equal(rec.Date.UTC().Truncate(24 * time.Hour)) {
			p.errorf("record %d: date %s is not a UTC midnight", i, rec.Date)
		}
		if rec.NHours < 1 || rec.NHours > 24 {
			p.errorf("record %d: nhours %d outside [1,24]", i, rec.NHours)
		}
		if rec.WindspeedMean < 0 || rec.WindspeedDailyAvg < 0 || rec.WindspeedGust < 0 {
			p.errorf("record %d: negative wind speed", i)
		}
		if rec.WindspeedDailyAvg > rec.WindspeedMean {
			p.errorf("record %d: daily average %.2f exceeds daily max mean %.2f", i, rec.WindspeedDailyAvg, rec.WindspeedMean)
		}
		if rec.WindDirection != nil && (*rec.WindDirection < 0 || *rec.WindDirection >= 360) {
			p.errorf("record %d: direction %.1f outside [0,360)", i, *rec.WindDirection)
		}
		if last, ok := lastPerSource[rec.Source]; ok && !rec.Date.After(last) {
			p.errorf("record %d: %s series not strictly ascending", i, rec.Source)
		}
		lastPerSource[rec.Source] = rec.Date
	}
	return p
}

func validateFits(analyses []pipeline.SiteAnalysis) *phase {
	p := &phase{name: "extreme-value fits"}
	for _, a := range analyses {
		for _, sf := range a.Fits {
			id := fmt.Sprintf("%s %s/%s", a.Site.Name, sf.Source, sf.Variable)
			if sf.Error != "" {
				if sf.Fit != nil {
					p.errorf("%s: carries both an error and a fit", id)
				}
				continue
			}
			if sf.Fit == nil {
				p.errorf("%s: no fit and no error", id)
				continue
			}
			f := sf.Fit
			if f.Scale <= 0 {
				p.errorf("%s: scale %.4f is not positive", id, f.Scale)
			}
			if f.KSStatistic < 0 || f.KSStatistic > 1 {
				p.errorf("%s: ks statistic %.4f outside [0,1]", id, f.KSStatistic)
			}
			if f.SampleSize != sf.MaximaCount {
				p.errorf("%s: sample size %d != maxima count %d", id, f.SampleSize, sf.MaximaCount)
			}
			for i := 1; i < len(f.Levels); i++ {
				prev, cur := f.Levels[i-1], f.Levels[i]
				if cur.PeriodYears <= prev.PeriodYears {
					p.errorf("%s: return periods not ascending", id)
				}
				if cur.Speed <= prev.Speed {
					p.errorf("%s: return level at %dy (%.2f) not above %dy (%.2f)",
						id, cur.PeriodYears, cur.Speed, prev.PeriodYears, prev.Speed)
				}
			}
		}
	}
	return p
}

func validateQuality(analyses []pipeline.SiteAnalysis) *phase {
	p := &phase{name: "quality reports"}
	for _, a := range analyses {
		for source, report := range a.Quality {
			id := fmt.Sprintf("%s %s", a.Site.Name, source)
			if report.Coverage < 0 || report.Coverage > 1 {
				p.errorf("%s: coverage %.4f outside [0,1]", id, report.Coverage)
			}
			if report.DaysPresent > report.DaysExpected {
				p.errorf("%s: days present %d exceeds expected %d", id, report.DaysPresent, report.DaysExpected)
			}
			for _, gap := range report.Gaps {
				if gap.End.Before(gap.Start) {
					p.errorf("%s: gap ends before it starts", id)
				}
				if gap.Start.Before(report.RangeStart) || gap.End.After(report.RangeEnd) {
					p.errorf("%s: gap outside assessed range", id)
				}
			}
		}
	}
	return p
}

func validateComparisons(analyses []pipeline.SiteAnalysis) *phase {
	p := &phase{name: "source comparisons"}
	for _, a := range analyses {
		for _, cmp := range a.Comparisons {
			id := fmt.Sprintf("%s %s-vs-%s/%s", a.Site.Name, cmp.SourceA, cmp.SourceB, cmp.Variable)
			if cmp.SharedDays <= 0 {
				p.errorf("%s: published with no shared days", id)
				continue
			}
			if cmp.Correlation < -1.000001 || cmp.Correlation > 1.000001 {
				p.errorf("%s: correlation %.4f outside [-1,1]", id, cmp.Correlation)
			}
			if cmp.MAE < 0 {
				p.errorf("%s: negative mae", id)
			}
			if cmp.MaxA < cmp.MinA || cmp.MaxB < cmp.MinB {
				p.errorf("%s: min exceeds max", id)
			}
		}
	}
	return p
}
