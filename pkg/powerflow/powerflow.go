// Package powerflow derives the display quantities of a refresh cycle from
// raw real-time readings. Everything here is a pure transform of
// already-fetched samples; no I/O, no shared state.
package powerflow

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/sampling"
	"github.com/energystats/energystats/pkg/types"
)

// Variables read from the real-time query.
const (
	varFeedIn          = "feedinPower"
	varGridConsumption = "gridConsumptionPower"
	varLoads           = "loadsPower"
	varGeneration      = "generationPower"
	varMeterPower2     = "meterPower2"
	varPV              = "pvPower"
	varEPS             = "epsPower"
	varAmbientTemp     = "ambientTemperation"
	varInverterTemp    = "invTemperation"
)

var stringPowerVariables = map[types.StringType]string{
	types.StringPV1: "pv1Power",
	types.StringPV2: "pv2Power",
	types.StringPV3: "pv3Power",
	types.StringPV4: "pv4Power",
	types.StringPV5: "pv5Power",
	types.StringPV6: "pv6Power",
}

// Calculate derives a PowerFlowSnapshot from one real-time sample batch.
// All outputs are computed independently from the same raw snapshot in full
// float64 precision; rounding is a display concern and happens elsewhere.
//
// Sign conventions: grid is export-positive (feed-in minus grid
// consumption, unclamped). CT2 polarity is configuration, not inference.
func Calculate(ctx context.Context, samples []types.TimedSample, settings types.Settings, device types.Device, now time.Time) types.PowerFlowSnapshot {
	snap := types.PowerFlowSnapshot{
		Timestamp:         now,
		FeedInKW:          sampling.CurrentValue(samples, varFeedIn),
		GridConsumptionKW: sampling.CurrentValue(samples, varGridConsumption),
		LoadsKW:           sampling.CurrentValue(samples, varLoads),
		GenerationKW:      sampling.CurrentValue(samples, varGeneration),
		EPSKW:             sampling.CurrentValue(samples, varEPS),
		PVKW:              sampling.CurrentValue(samples, varPV),
		AmbientTempC:      sampling.CurrentValue(samples, varAmbientTemp),
		InverterTempC:     sampling.CurrentValue(samples, varInverterTemp),
		BatterySOC:        sampling.StateOfCharge(samples),
		HasPV:             device.HasPV,
	}

	meterPower2 := sampling.CurrentValue(samples, varMeterPower2)

	snap.GridKW = snap.FeedInKW - snap.GridConsumptionKW

	if settings.InvertCT2 {
		snap.CT2KW = -meterPower2
	} else {
		snap.CT2KW = meterPower2
	}

	if settings.UseTraditionalLoadFormula {
		// The traditional formula takes abs of the raw CT2 reading and
		// ignores the invert flag. Inherited behavior, kept verbatim.
		snap.HomeKW = snap.GridConsumptionKW + snap.GenerationKW - snap.FeedInKW + math.Abs(meterPower2)
	} else {
		snap.HomeKW = snap.LoadsKW
		if settings.CombineCT2WithLoads {
			snap.HomeKW += snap.CT2KW
		}
	}

	if device.HasPV {
		snap.SolarKW = snap.PVKW
		if settings.CombineCT2WithPV {
			snap.SolarKW += snap.CT2KW
		}
		if settings.ShowStringPowers {
			snap.SolarStrings = stringPowers(samples, settings)
		}
	} else {
		// CT2 is the sole solar proxy on battery-only systems
		snap.SolarKW = snap.CT2KW
	}

	log.Ctx(ctx).DebugContext(ctx, "power flow calculated",
		slog.Float64("gridKW", snap.GridKW),
		slog.Float64("homeKW", snap.HomeKW),
		slog.Float64("solarKW", snap.SolarKW),
		slog.Float64("ct2KW", snap.CT2KW),
		slog.Float64("soc", snap.BatterySOC),
	)

	return snap
}

// stringPowers collects the per-string readings present in the batch.
func stringPowers(samples []types.TimedSample, settings types.Settings) []types.StringPower {
	var out []types.StringPower
	for _, st := range types.AllStringTypes {
		variable := stringPowerVariables[st]
		if !hasVariable(samples, variable) {
			continue
		}
		out = append(out, types.StringPower{
			String:   st,
			Name:     settings.StringDisplayName(st),
			AmountKW: sampling.CurrentValue(samples, variable),
		})
	}
	return out
}

func hasVariable(samples []types.TimedSample, variable string) bool {
	for _, s := range samples {
		if strings.EqualFold(s.Variable, variable) {
			return true
		}
	}
	return false
}
