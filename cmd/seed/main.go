// Command seed fills the Firestore emulator with a day of plausible
// inverter data so the API can be exercised without a FoxESS account.
package main

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/storage"
	"github.com/energystats/energystats/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const deviceSN = "MOCK-H1-001"

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	db := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	const (
		SolarPeakKW = 4.5
		HomeAvgKW   = 0.8
	)

	now := time.Now()
	start := now.Truncate(24 * time.Hour)

	// Settings first so migrations never run against seeded data
	settings := types.Settings{
		DeviceSN:               deviceSN,
		ShowStringPowers:       true,
		StringNames:            map[string]string{"pv1": "East", "pv2": "West"},
		MinSOC:                 10,
		RefreshIntervalSeconds: 60,
	}
	if err := db.SetSettings(ctx, deviceSN, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	// Snapshots every 5 minutes from midnight to now
	soc := 40.0
	for t := start; t.Before(now); t = t.Add(5 * time.Minute) {
		hour := float64(t.Hour()) + float64(t.Minute())/60

		// Solar bell curve peaking around 13:00
		solarKW := 0.0
		if hour > 6 && hour < 19 {
			dist := hour - 13.0
			solarKW = SolarPeakKW * math.Exp(-(dist*dist)/12.0)
		}
		solarKW += (rng.Float64() * 0.2) - 0.1
		solarKW = math.Max(solarKW, 0)

		homeKW := HomeAvgKW + rng.Float64()*0.5
		if t.Hour() >= 18 && t.Hour() < 22 {
			homeKW += 1.5
		}

		surplus := solarKW - homeKW
		gridKW := 0.0
		if surplus > 0 {
			// charge the battery first, export the rest
			charge := math.Min(surplus, 3.0)
			soc = math.Min(soc+charge*0.3, 100)
			gridKW = surplus - charge
		} else {
			drain := math.Min(-surplus, 3.0)
			soc = math.Max(soc-drain*0.3, 10)
			gridKW = surplus + drain
		}

		snapshot := types.PowerFlowSnapshot{
			Timestamp:  t,
			SolarKW:    solarKW,
			HomeKW:     homeKW,
			GridKW:     gridKW,
			CT2KW:      0.2,
			BatterySOC: soc,
			HasPV:      true,
			SolarStrings: []types.StringPower{
				{String: types.StringPV1, Name: "East", AmountKW: solarKW * 0.6},
				{String: types.StringPV2, Name: "West", AmountKW: solarKW * 0.4},
			},
		}
		if err := db.UpsertSnapshot(ctx, deviceSN, snapshot); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed snapshot", "error", err)
			os.Exit(1)
		}
	}

	// A week of generation totals
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, -i)
		total := 14.0 + rng.Float64()*8.0
		ct2 := 0.5 + rng.Float64()*0.5
		east := (total - ct2) * 0.6
		west := total - ct2 - east
		totals := types.GenerationTotals{
			Day:      day,
			TotalKWH: total,
			CT2KWH:   ct2,
			Strings: []types.StringEnergy{
				{String: types.StringPV1, Name: "East", KWH: east, Percent: east / total * 100},
				{String: types.StringPV2, Name: "West", KWH: west, Percent: west / total * 100},
			},
		}
		if err := db.UpsertGenerationTotals(ctx, deviceSN, totals); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed generation totals", "error", err)
			os.Exit(1)
		}
	}

	// A schedule template to activate from the API
	maxSOC := 95
	template := types.Schedule{
		Name:       "Overnight charge",
		TemplateID: "seed-overnight",
		Phases: []types.SchedulePhase{
			{
				ID:     "seed-charge",
				Start:  types.TimeOfDay{Hour: 1, Minute: 30},
				End:    types.TimeOfDay{Hour: 5, Minute: 0},
				Mode:   types.WorkModeForceCharge,
				MinSOC: 10,
				MaxSOC: &maxSOC,
				Color:  types.WorkModeDetails(types.WorkModeForceCharge).ColorTag,
			},
			{
				ID:                  "seed-discharge",
				Start:               types.TimeOfDay{Hour: 17, Minute: 0},
				End:                 types.TimeOfDay{Hour: 19, Minute: 30},
				Mode:                types.WorkModeForceDischarge,
				ForceDischargePower: 5000,
				ForceDischargeSOC:   20,
				MinSOC:              10,
				Color:               types.WorkModeDetails(types.WorkModeForceDischarge).ColorTag,
			},
		},
	}
	if err := db.SaveScheduleTemplate(ctx, deviceSN, template); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed schedule template", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
}
