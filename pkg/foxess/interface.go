package foxess

import (
	"context"
	"time"

	"github.com/energystats/energystats/pkg/types"
)

// Client defines the interface for the FoxESS OpenAPI cloud.
type Client interface {
	// ListDevices returns the inverters visible to the API key.
	ListDevices(ctx context.Context) ([]types.Device, error)

	// RealTimeQuery returns the latest instantaneous readings for the named
	// variables. An empty variables slice requests everything.
	RealTimeQuery(ctx context.Context, deviceSN string, variables []string) ([]types.TimedSample, error)

	// HistoryQuery returns the raw per-minute series for the named
	// variables between start and end.
	HistoryQuery(ctx context.Context, deviceSN string, variables []string, start, end time.Time) ([]types.TimedSample, error)

	// ReportQuery returns the daily report rows for the month containing
	// day.
	ReportQuery(ctx context.Context, deviceSN string, variables []string, day time.Time) ([]types.ReportRow, error)

	// GetBatterySettings returns the device battery configuration.
	GetBatterySettings(ctx context.Context, deviceSN string) (types.Battery, error)

	// GetSchedule fetches the device's current inverter schedule.
	GetSchedule(ctx context.Context, deviceSN string) (types.Schedule, error)

	// SaveSchedule pushes a schedule to the device.
	SaveSchedule(ctx context.Context, deviceSN string, schedule types.Schedule) error
}
