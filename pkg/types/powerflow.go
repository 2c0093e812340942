package types

import "time"

// StringType identifies a physical PV string input on the inverter.
type StringType string

const (
	StringPV1 StringType = "pv1"
	StringPV2 StringType = "pv2"
	StringPV3 StringType = "pv3"
	StringPV4 StringType = "pv4"
	StringPV5 StringType = "pv5"
	StringPV6 StringType = "pv6"
)

// AllStringTypes lists the string inputs in display order.
var AllStringTypes = []StringType{
	StringPV1, StringPV2, StringPV3, StringPV4, StringPV5, StringPV6,
}

// StringPower is one PV string's instantaneous contribution.
type StringPower struct {
	String StringType `json:"string"`
	// Name is the user-configured display name for the string.
	Name     string  `json:"name"`
	AmountKW float64 `json:"amountKW"`
}

// PowerFlowSnapshot holds the derived quantities for one refresh cycle.
// It is ephemeral and recomputed on every refresh; all power fields are
// signed kW. Grid is export-positive (feed-in minus grid consumption).
type PowerFlowSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// Raw inputs carried through for display.
	FeedInKW          float64 `json:"feedInKW"`
	GridConsumptionKW float64 `json:"gridConsumptionKW"`
	LoadsKW           float64 `json:"loadsKW"`
	GenerationKW      float64 `json:"generationKW"`
	EPSKW             float64 `json:"epsKW"`
	PVKW              float64 `json:"pvKW"`
	AmbientTempC      float64 `json:"ambientTempC"`
	InverterTempC     float64 `json:"inverterTempC"`
	BatterySOC        float64 `json:"batterySOC"`

	// Derived outputs.
	GridKW       float64       `json:"gridKW"`
	HomeKW       float64       `json:"homeKW"`
	CT2KW        float64       `json:"ct2KW"`
	SolarKW      float64       `json:"solarKW"`
	SolarStrings []StringPower `json:"solarStrings,omitempty"`

	HasPV bool `json:"hasPV"`
}

// StringEnergy is one PV string's (or the CT2 channel's) cumulative energy
// for today, with its share of the combined total.
type StringEnergy struct {
	String  StringType `json:"string"`
	Name    string     `json:"name"`
	KWH     float64    `json:"kwh"`
	Percent float64    `json:"percent"`
}

// GenerationTotals holds today's per-channel energy totals, each computed
// independently via trapezoidal integration over that channel's raw power
// samples.
type GenerationTotals struct {
	Day      time.Time      `json:"day"`
	Strings  []StringEnergy `json:"strings,omitempty"`
	CT2KWH   float64        `json:"ct2KWH"`
	TotalKWH float64        `json:"totalKWH"`
}
