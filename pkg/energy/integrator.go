// Package energy converts sequences of instantaneous power samples into
// energy totals via the trapezoidal rule.
package energy

import (
	"math"
	"strings"
	"time"

	"github.com/energystats/energystats/pkg/types"
)

// Integrate sums the trapezoidal increments of one variable's power series
// and returns the energy total in kWh. Values are assumed to be kW and the
// series already in ascending time order; callers must not mix variables in
// one call and must sort unsorted input first (the result of wrong-order
// input is not meaningful).
//
// Pairs whose timestamps fail to parse contribute zero rather than failing;
// empty and single-sample series yield 0.0.
func Integrate(samples []types.TimedSample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		a, b := samples[i-1], samples[i]
		ta, err := a.ParseTime()
		if err != nil {
			continue
		}
		tb, err := b.ParseTime()
		if err != nil {
			continue
		}
		avg := (a.Value + b.Value) / 2.0
		total += avg * tb.Sub(ta).Seconds() / 3600.0
	}
	return total
}

// IntegrateCT2 integrates a secondary current-transformer series. The
// sensor can be wired to measure import or export, so which sign counts as
// generation is configured: with invert set only originally-negative
// readings count (their absolute value is taken), otherwise only
// originally-positive readings count. Non-qualifying readings contribute
// zero without disturbing the time base.
func IntegrateCT2(samples []types.TimedSample, invert bool) float64 {
	filtered := make([]types.TimedSample, len(samples))
	for i, s := range samples {
		v := 0.0
		if invert {
			if s.Value < 0 {
				v = math.Abs(s.Value)
			}
		} else if s.Value > 0 {
			v = s.Value
		}
		filtered[i] = s
		filtered[i].Value = v
	}
	return Integrate(filtered)
}

// Variables integrated per PV string, in types.AllStringTypes order.
var stringVariables = map[types.StringType]string{
	types.StringPV1: "pv1Power",
	types.StringPV2: "pv2Power",
	types.StringPV3: "pv3Power",
	types.StringPV4: "pv4Power",
	types.StringPV5: "pv5Power",
	types.StringPV6: "pv6Power",
}

// Totals computes today's per-string and CT2 energy totals from the raw
// history sample list. Each channel is integrated independently over its
// own series; percentages are shares of the combined total.
func Totals(samples []types.TimedSample, settings types.Settings, device types.Device, day time.Time) types.GenerationTotals {
	totals := types.GenerationTotals{Day: day}

	if device.HasPV {
		for _, st := range types.AllStringTypes {
			series := filterVariable(samples, stringVariables[st])
			if len(series) == 0 {
				continue
			}
			kwh := Integrate(series)
			totals.Strings = append(totals.Strings, types.StringEnergy{
				String: st,
				Name:   settings.StringDisplayName(st),
				KWH:    kwh,
			})
			totals.TotalKWH += kwh
		}
	}

	ct2 := filterVariable(samples, "meterPower2")
	if len(ct2) > 0 {
		totals.CT2KWH = IntegrateCT2(ct2, settings.InvertCT2)
		totals.TotalKWH += totals.CT2KWH
	}

	if totals.TotalKWH > 0 {
		for i := range totals.Strings {
			totals.Strings[i].Percent = totals.Strings[i].KWH / totals.TotalKWH * 100.0
		}
	}
	return totals
}

func filterVariable(samples []types.TimedSample, variable string) []types.TimedSample {
	var out []types.TimedSample
	for _, s := range samples {
		if strings.EqualFold(s.Variable, variable) {
			out = append(out, s)
		}
	}
	return out
}
