package types

// Device describes one inverter known to the vendor cloud.
type Device struct {
	DeviceSN   string `json:"deviceSN"`
	StationID  string `json:"stationID"`
	DeviceType string `json:"deviceType"`
	HasPV      bool   `json:"hasPV"`
	HasBattery bool   `json:"hasBattery"`
	ModuleSN   string `json:"moduleSN,omitempty"`

	Battery *Battery `json:"battery,omitempty"`
}

// Battery describes the battery attached to a device, when present.
type Battery struct {
	Capacity float64 `json:"capacity"` // kWh
	// MinSOC is the inverter-configured minimum state of charge (percent).
	// Used as the default for gap-filled schedule phases.
	MinSOC int `json:"minSOC"`
}

// MinSOC returns the device battery's configured minimum state of charge,
// or def when the device has no battery data.
func (d Device) MinSOCOrDefault(def int) int {
	if d.Battery == nil || d.Battery.MinSOC <= 0 {
		return def
	}
	return d.Battery.MinSOC
}
