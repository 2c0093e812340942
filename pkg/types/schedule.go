package types

import (
	"fmt"
	"sort"
)

// TimeOfDay is a minute-resolution wall-clock time within a single day.
type TimeOfDay struct {
	Hour   int `json:"hour"`   // 0-23
	Minute int `json:"minute"` // 0-59
}

// TimeOfDayFromMinutes converts minutes-since-midnight back to a TimeOfDay.
// The input must be within [0, 1439].
func TimeOfDayFromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// TotalMinutes returns minutes since midnight.
func (t TimeOfDay) TotalMinutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.TotalMinutes() < other.TotalMinutes()
}

// After reports whether t is strictly later than other.
func (t TimeOfDay) After(other TimeOfDay) bool {
	return t.TotalMinutes() > other.TotalMinutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// WorkMode is the inverter operating mode for a schedule phase. The enum
// carries no presentation logic; display metadata lives in WorkModeDetails.
type WorkMode string

const (
	WorkModeSelfUse        WorkMode = "SelfUse"
	WorkModeFeedInFirst    WorkMode = "Feedin"
	WorkModeBackup         WorkMode = "Backup"
	WorkModeForceCharge    WorkMode = "ForceCharge"
	WorkModeForceDischarge WorkMode = "ForceDischarge"
)

// WorkModeInfo is display metadata for a work mode.
type WorkModeInfo struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	ColorTag string `json:"colorTag"`
}

var workModeInfos = map[WorkMode]WorkModeInfo{
	WorkModeSelfUse: {
		Title:    "Self Use",
		Subtitle: "Solar powers the home first, surplus charges the battery.",
		ColorTag: "green",
	},
	WorkModeFeedInFirst: {
		Title:    "Feed In First",
		Subtitle: "Solar exports to the grid first, surplus charges the battery.",
		ColorTag: "blue",
	},
	WorkModeBackup: {
		Title:    "Backup",
		Subtitle: "Battery is held in reserve for outages.",
		ColorTag: "gray",
	},
	WorkModeForceCharge: {
		Title:    "Force Charge",
		Subtitle: "Battery charges from any available source.",
		ColorTag: "orange",
	},
	WorkModeForceDischarge: {
		Title:    "Force Discharge",
		Subtitle: "Battery discharges at the configured power.",
		ColorTag: "red",
	},
}

// WorkModeDetails returns the display metadata for a work mode. Unknown
// modes fall back to the mode string itself with no subtitle.
func WorkModeDetails(m WorkMode) WorkModeInfo {
	if info, ok := workModeInfos[m]; ok {
		return info
	}
	return WorkModeInfo{Title: string(m)}
}

// SchedulePhase is one time-of-day window of a schedule. Phases within a
// schedule must not overlap; that is validated by Schedule.IsValid, not
// enforced at construction.
type SchedulePhase struct {
	ID    string    `json:"id"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
	Mode  WorkMode  `json:"mode"`

	ForceDischargePower int  `json:"forceDischargePower"` // W
	ForceDischargeSOC   int  `json:"forceDischargeSOC"`   // percent
	MinSOC              int  `json:"minSOC"`              // percent
	MaxSOC              *int `json:"maxSOC,omitempty"`    // percent

	Color string `json:"color,omitempty"`
}

// Schedule is an ordered-by-start list of phases, edited in memory and only
// pushed to the vendor cloud on explicit save.
type Schedule struct {
	Name       string          `json:"name"`
	Phases     []SchedulePhase `json:"phases"`
	TemplateID string          `json:"templateID,omitempty"`
}

// IsValid reports whether no phase is inverted and no two phases overlap.
// Times are minute-resolution and phases cover their endpoints, so a phase
// ending at 10:00 requires the next to start at 10:01 or later. A phase
// with start equal to end covers a single minute and is allowed (AddPhase
// creates phases that way).
func (s Schedule) IsValid() bool {
	phases := make([]SchedulePhase, len(s.Phases))
	copy(phases, s.Phases)
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Start.Before(phases[j].Start)
	})

	for i, p := range phases {
		if p.End.Before(p.Start) {
			return false
		}
		if i > 0 && !p.Start.After(phases[i-1].End) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of the schedule.
func (s Schedule) Copy() Schedule {
	out := s
	out.Phases = make([]SchedulePhase, len(s.Phases))
	copy(out.Phases, s.Phases)
	for i, p := range s.Phases {
		if p.MaxSOC != nil {
			v := *p.MaxSOC
			out.Phases[i].MaxSOC = &v
		}
	}
	return out
}
