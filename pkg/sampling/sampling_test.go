package sampling

import (
	"testing"
	"time"

	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/assert"
)

func sample(variable, ts string, value float64) types.TimedSample {
	return types.TimedSample{Variable: variable, Time: ts, Value: value}
}

func TestCurrentValue(t *testing.T) {
	t.Run("empty returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, CurrentValue(nil, "x"))
		assert.Equal(t, 0.0, CurrentValue([]types.TimedSample{}, "x"))
	})

	t.Run("case insensitive match", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("feedinPower", "2026-03-01 10:00:00 GMT", 1.5),
		}
		assert.Equal(t, 1.5, CurrentValue(samples, "FEEDINPOWER"))
		assert.Equal(t, CurrentValue(samples, "FeedinPower"), CurrentValue(samples, "feedinpower"))
	})

	t.Run("most recent wins regardless of order", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("loadsPower", "2026-03-01 10:05:00 GMT", 2.0),
			sample("loadsPower", "2026-03-01 10:00:00 GMT", 1.0),
			sample("loadsPower", "2026-03-01 10:03:00 GMT", 3.0),
		}
		assert.Equal(t, 2.0, CurrentValue(samples, "loadsPower"))
	})

	t.Run("unknown variable returns zero", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("loadsPower", "2026-03-01 10:00:00 GMT", 1.0),
		}
		assert.Equal(t, 0.0, CurrentValue(samples, "pvPower"))
	})

	t.Run("bad timestamps never throw", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("pvPower", "not a time", 4.2),
		}
		assert.Equal(t, 4.2, CurrentValue(samples, "pvPower"))
	})
}

func TestTodayValue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rows := []types.ReportRow{
		{Variable: "generation", Index: 14, Value: 8.1},
		{Variable: "generation", Index: 15, Value: 9.6},
		{Variable: "feedin", Index: 15, Value: 2.2},
	}

	assert.Equal(t, 9.6, TodayValue(rows, "generation", now))
	assert.Equal(t, 2.2, TodayValue(rows, "FEEDIN", now))
	assert.Equal(t, 0.0, TodayValue(rows, "loads", now))
	assert.Equal(t, 0.0, TodayValue(nil, "generation", now))
}

func TestStateOfCharge(t *testing.T) {
	t.Run("prefers SoC", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("SoC", "2026-03-01 10:00:00 GMT", 72),
			sample("SoC_1", "2026-03-01 10:00:00 GMT", 65),
		}
		assert.Equal(t, 72.0, StateOfCharge(samples))
	})

	t.Run("SoC present but zero does not fall back", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("SoC", "2026-03-01 10:00:00 GMT", 0),
			sample("SoC_1", "2026-03-01 10:00:00 GMT", 65),
		}
		assert.Equal(t, 0.0, StateOfCharge(samples))
	})

	t.Run("falls back to SoC_1", func(t *testing.T) {
		samples := []types.TimedSample{
			sample("SoC_1", "2026-03-01 10:00:00 GMT", 65),
		}
		assert.Equal(t, 65.0, StateOfCharge(samples))
	})

	t.Run("defaults to zero", func(t *testing.T) {
		assert.Equal(t, 0.0, StateOfCharge(nil))
	})
}
