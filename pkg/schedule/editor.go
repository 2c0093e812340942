// Package schedule edits inverter schedules: phase insert/update/delete
// and gap-filling so the full day is covered. Phases are data, not stateful
// objects; every function here returns a new Schedule and leaves its input
// untouched.
package schedule

import (
	"sort"
	"time"

	"github.com/energystats/energystats/pkg/types"
	"github.com/google/uuid"
)

// DefaultMinSOC is used for new and gap-filled phases when the device
// battery supplies no minimum.
const DefaultMinSOC = 10

const lastMinuteOfDay = 23*60 + 59

// AddPhase appends a new phase defaulted to the current wall-clock time as
// both start and end, with the given mode, 0 W discharge power and the
// device minimum SOC for both SOC thresholds, then re-sorts by start.
func AddPhase(s types.Schedule, mode types.WorkMode, device types.Device, now time.Time) types.Schedule {
	out := s.Copy()
	minSOC := device.MinSOCOrDefault(DefaultMinSOC)
	at := types.TimeOfDay{Hour: now.Hour(), Minute: now.Minute()}
	out.Phases = append(out.Phases, types.SchedulePhase{
		ID:                  uuid.NewString(),
		Start:               at,
		End:                 at,
		Mode:                mode,
		ForceDischargePower: 0,
		ForceDischargeSOC:   minSOC,
		MinSOC:              minSOC,
		Color:               types.WorkModeDetails(mode).ColorTag,
	})
	sortPhases(out.Phases)
	return out
}

// FillGaps computes the complementary phases needed to cover the full day
// [00:00, 23:59] and returns the merged, start-sorted schedule. Gap
// detection uses a one-minute buffer on each side: a phase ending at 10:00
// followed by one starting at 10:01 is adjacent, not a gap. Given
// non-overlapping input every minute of the day is covered by exactly one
// phase afterwards; overlapping input is not detected here (that is
// Schedule.IsValid's job). Running FillGaps twice adds nothing.
func FillGaps(s types.Schedule, fallback types.WorkMode, device types.Device) types.Schedule {
	out := s.Copy()
	sortPhases(out.Phases)

	minSOC := device.MinSOCOrDefault(DefaultMinSOC)
	var fillers []types.SchedulePhase

	// lastEnd is the last covered minute so far; -1 before any coverage so
	// a leading gap starts at 00:00.
	lastEnd := -1
	for _, p := range out.Phases {
		gapStart := lastEnd + 1
		gapEnd := p.Start.TotalMinutes() - 1
		if gapEnd-gapStart >= 0 {
			fillers = append(fillers, gapPhase(gapStart, gapEnd, fallback, minSOC))
		}
		if end := p.End.TotalMinutes(); end > lastEnd {
			lastEnd = end
		}
	}
	if lastEnd < lastMinuteOfDay {
		fillers = append(fillers, gapPhase(lastEnd+1, lastMinuteOfDay, fallback, minSOC))
	}

	out.Phases = append(out.Phases, fillers...)
	sortPhases(out.Phases)
	return out
}

// UpdatePhase replaces the phase with a matching id. An unknown id is a
// no-op, not an error.
func UpdatePhase(s types.Schedule, phase types.SchedulePhase) types.Schedule {
	out := s.Copy()
	for i, p := range out.Phases {
		if p.ID == phase.ID {
			out.Phases[i] = phase
			break
		}
	}
	sortPhases(out.Phases)
	return out
}

// DeletePhase removes the phase with a matching id. An unknown id is a
// no-op, not an error.
func DeletePhase(s types.Schedule, id string) types.Schedule {
	out := s.Copy()
	for i, p := range out.Phases {
		if p.ID == id {
			out.Phases = append(out.Phases[:i], out.Phases[i+1:]...)
			break
		}
	}
	return out
}

func gapPhase(startMin, endMin int, mode types.WorkMode, minSOC int) types.SchedulePhase {
	return types.SchedulePhase{
		ID:                  uuid.NewString(),
		Start:               types.TimeOfDayFromMinutes(startMin),
		End:                 types.TimeOfDayFromMinutes(endMin),
		Mode:                mode,
		ForceDischargePower: 0,
		ForceDischargeSOC:   minSOC,
		MinSOC:              minSOC,
		Color:               types.WorkModeDetails(mode).ColorTag,
	}
}

func sortPhases(phases []types.SchedulePhase) {
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Start.Before(phases[j].Start)
	})
}
