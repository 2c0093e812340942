package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 3

// Settings represents the dynamic configuration stored in the database.
// These can be changed without redeploying.
type Settings struct {
	// DeviceSN selects which inverter the refresh cycle reads. Empty means
	// the first device returned by the vendor device list.
	DeviceSN string `json:"deviceSN"`

	// Load formula selection. When true, home consumption is computed as
	// gridConsumption + generation - feedIn + abs(meterPower2); otherwise
	// loads (+ CT2 when CombineCT2WithLoads is set).
	UseTraditionalLoadFormula bool `json:"useTraditionalLoadFormula"`

	// CT2 sign convention is site-dependent (the sensor can be wired to
	// measure import or export), so it is configured, never inferred.
	InvertCT2           bool `json:"invertCT2"`
	CombineCT2WithPV    bool `json:"combineCT2WithPV"`
	CombineCT2WithLoads bool `json:"combineCT2WithLoads"`

	// Per-string reporting.
	ShowStringPowers bool              `json:"showStringPowers"`
	StringNames      map[string]string `json:"stringNames,omitempty"`

	// MinSOC is the default minimum state of charge (percent) used for
	// gap-filled schedule phases when the device supplies none.
	MinSOC int `json:"minSOC"`

	// RefreshIntervalSeconds is how often the periodic update cycle runs.
	RefreshIntervalSeconds int `json:"refreshIntervalSeconds"`
}

// StringDisplayName resolves the display name for a PV string. Unrecognized
// string keys fall back to the PV6 label rather than failing.
func (s Settings) StringDisplayName(st StringType) string {
	key := string(st)
	switch st {
	case StringPV1, StringPV2, StringPV3, StringPV4, StringPV5, StringPV6:
	default:
		key = string(StringPV6)
	}
	if name, ok := s.StringNames[key]; ok && name != "" {
		return name
	}
	// default labels PV1..PV6
	return "PV" + key[len(key)-1:]
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were
// made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.StringNames == nil {
				s.StringNames = map[string]string{}
				migrated = true
			}
		case 2:
			// version 2: add MinSOC default
			if s.MinSOC == 0 {
				s.MinSOC = 10
				migrated = true
			}
		case 3:
			// version 3: add refresh interval
			if s.RefreshIntervalSeconds == 0 {
				s.RefreshIntervalSeconds = 60
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}
