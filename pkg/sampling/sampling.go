// Package sampling extracts single values out of lists of timestamped
// samples keyed by variable name. All functions are pure and total: absence
// of data reads as zero so one missing variable never fails a whole
// refresh cycle.
package sampling

import (
	"strings"
	"time"

	"github.com/energystats/energystats/pkg/types"
)

// CurrentValue returns the most recent sample's value for the named
// variable, or 0.0 if no series exists for that name. The variable match is
// case-insensitive.
func CurrentValue(samples []types.TimedSample, variable string) float64 {
	var (
		found  bool
		latest time.Time
		value  float64
	)
	for _, s := range samples {
		if !strings.EqualFold(s.Variable, variable) {
			continue
		}
		t, err := s.ParseTime()
		if err != nil {
			// a lone sample with a bad timestamp still beats no data
			if !found {
				value = s.Value
				found = true
			}
			continue
		}
		if !found || t.After(latest) {
			latest = t
			value = s.Value
			found = true
		}
	}
	return value
}

// TodayValue returns the report row whose index equals now's day of month
// for the named variable, or 0.0 if absent.
func TodayValue(rows []types.ReportRow, variable string, now time.Time) float64 {
	day := now.Day()
	for _, r := range rows {
		if r.Index == day && strings.EqualFold(r.Variable, variable) {
			return r.Value
		}
	}
	return 0.0
}

// StateOfCharge returns the battery state of charge in percent. Multi
// battery systems suffix-number the variable, so "SoC" is tried first and
// "SoC_1" second, defaulting to 0.0.
func StateOfCharge(samples []types.TimedSample) float64 {
	if hasSeries(samples, "SoC") {
		return CurrentValue(samples, "SoC")
	}
	return CurrentValue(samples, "SoC_1")
}

func hasSeries(samples []types.TimedSample, variable string) bool {
	for _, s := range samples {
		if strings.EqualFold(s.Variable, variable) {
			return true
		}
	}
	return false
}
