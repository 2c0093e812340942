package foxess

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/energystats/energystats/pkg/types"
)

// Mock implements Client with synthetic data so the server can run
// without a FoxESS account. Saved schedules are held in memory.
type Mock struct {
	mu       sync.Mutex
	schedule types.Schedule

	// Now is swapped out in tests for deterministic output.
	Now func() time.Time
}

// NewMock creates a mock FoxESS client with a single fake inverter.
func NewMock() *Mock {
	return &Mock{Now: time.Now}
}

// mockDeviceSN is the serial of the single fake inverter.
const mockDeviceSN = "MOCK-H1-001"

func (m *Mock) ListDevices(ctx context.Context) ([]types.Device, error) {
	return []types.Device{{
		DeviceSN:   mockDeviceSN,
		StationID:  "mock-station",
		DeviceType: "H1-5.0-E",
		HasPV:      true,
		HasBattery: true,
		ModuleSN:   "MOCK-MODULE-001",
	}}, nil
}

// solarCurve approximates a clear-sky generation curve peaking at noon.
func solarCurve(at time.Time) float64 {
	hour := float64(at.Hour()) + float64(at.Minute())/60
	if hour < 6 || hour > 20 {
		return 0
	}
	return 4.5 * math.Sin((hour-6)/14*math.Pi)
}

func (m *Mock) valueAt(variable string, at time.Time) float64 {
	pv := solarCurve(at)
	loads := 0.8 + 0.3*math.Sin(float64(at.Hour()))
	surplus := pv - loads

	switch variable {
	case "pvPower", "generationPower":
		return pv
	case "pv1Power":
		return pv * 0.6
	case "pv2Power":
		return pv * 0.4
	case "loadsPower":
		return loads
	case "feedinPower":
		return math.Max(surplus, 0)
	case "gridConsumptionPower":
		return math.Max(-surplus, 0)
	case "meterPower2":
		return 0.2
	case "epsPower":
		return 0
	case "ambientTemperation":
		return 21.5
	case "invTemperation":
		return 34.0
	case "SoC":
		return 75
	}
	return 0
}

var mockVariables = []string{
	"pvPower", "pv1Power", "pv2Power", "loadsPower", "feedinPower",
	"gridConsumptionPower", "meterPower2", "epsPower",
	"ambientTemperation", "invTemperation", "SoC",
}

func (m *Mock) RealTimeQuery(ctx context.Context, deviceSN string, variables []string) ([]types.TimedSample, error) {
	if len(variables) == 0 {
		variables = mockVariables
	}
	now := m.Now().UTC()
	samples := make([]types.TimedSample, 0, len(variables))
	for _, v := range variables {
		samples = append(samples, types.TimedSample{
			Variable: v,
			Time:     now.Format(types.SampleTimeLayout),
			Value:    m.valueAt(v, now),
		})
	}
	return samples, nil
}

func (m *Mock) HistoryQuery(ctx context.Context, deviceSN string, variables []string, start, end time.Time) ([]types.TimedSample, error) {
	var samples []types.TimedSample
	for _, v := range variables {
		for at := start; !at.After(end); at = at.Add(5 * time.Minute) {
			samples = append(samples, types.TimedSample{
				Variable: v,
				Time:     at.UTC().Format(types.SampleTimeLayout),
				Value:    m.valueAt(v, at),
			})
		}
	}
	return samples, nil
}

func (m *Mock) ReportQuery(ctx context.Context, deviceSN string, variables []string, day time.Time) ([]types.ReportRow, error) {
	daysInMonth := time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, day.Location()).Day()
	var rows []types.ReportRow
	for _, v := range variables {
		for i := 1; i <= daysInMonth; i++ {
			value := 0.0
			if i <= day.Day() {
				switch v {
				case "generation":
					value = 18.2
				case "feedin":
					value = 6.4
				case "gridConsumption":
					value = 3.1
				case "loads":
					value = 12.5
				}
			}
			rows = append(rows, types.ReportRow{Variable: v, Index: i, Value: value})
		}
	}
	return rows, nil
}

func (m *Mock) GetBatterySettings(ctx context.Context, deviceSN string) (types.Battery, error) {
	return types.Battery{Capacity: 10.4, MinSOC: 10}, nil
}

func (m *Mock) GetSchedule(ctx context.Context, deviceSN string) (types.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedule.Copy(), nil
}

func (m *Mock) SaveSchedule(ctx context.Context, deviceSN string, schedule types.Schedule) error {
	if deviceSN != mockDeviceSN {
		return fmt.Errorf("unknown device %q", deviceSN)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedule = schedule.Copy()
	return nil
}
