package types

import (
	"fmt"
	"time"
)

// Timestamp layouts used by the FoxESS history endpoints. The vendor
// includes a zone abbreviation on most firmwares but not all of them.
const (
	SampleTimeLayout       = "2006-01-02 15:04:05 MST"
	sampleTimeLayoutNoZone = "2006-01-02 15:04:05"
)

// TimedSample is one instantaneous reading of a named physical quantity.
// Values are in the unit the inverter reports (kW for power variables,
// percent for SoC, degrees C for temperatures). The raw vendor timestamp
// string is kept as-is; consumers that need an instant call ParseTime and
// are expected to tolerate failures (malformed vendor data is common).
type TimedSample struct {
	Variable string  `json:"variable"`
	Time     string  `json:"time"`
	Value    float64 `json:"value"`
}

// ParseTime parses the vendor timestamp string.
func (s TimedSample) ParseTime() (time.Time, error) {
	if t, err := time.Parse(SampleTimeLayout, s.Time); err == nil {
		return t, nil
	}
	t, err := time.Parse(sampleTimeLayoutNoZone, s.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable sample time %q: %w", s.Time, err)
	}
	return t, nil
}

// ReportRow is one row of a daily report query. Index is the day of the
// month the Value (kWh) applies to.
type ReportRow struct {
	Variable string  `json:"variable"`
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
}
