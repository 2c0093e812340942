package schedule

import (
	"testing"
	"time"

	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phase(id string, sh, sm, eh, em int, mode types.WorkMode) types.SchedulePhase {
	return types.SchedulePhase{
		ID:    id,
		Start: types.TimeOfDay{Hour: sh, Minute: sm},
		End:   types.TimeOfDay{Hour: eh, Minute: em},
		Mode:  mode,
	}
}

// totalCoveredMinutes counts covered minutes, counting double-covered
// minutes twice so overlaps are detectable.
func totalCoveredMinutes(s types.Schedule) int {
	total := 0
	for _, p := range s.Phases {
		total += p.End.TotalMinutes() - p.Start.TotalMinutes() + 1
	}
	return total
}

func TestAddPhase(t *testing.T) {
	now := time.Date(2026, 3, 1, 14, 42, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		s := AddPhase(types.Schedule{}, types.WorkModeForceCharge, types.Device{}, now)
		require.Len(t, s.Phases, 1)
		p := s.Phases[0]
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, types.TimeOfDay{Hour: 14, Minute: 42}, p.Start)
		assert.Equal(t, p.Start, p.End)
		assert.Equal(t, types.WorkModeForceCharge, p.Mode)
		assert.Equal(t, 0, p.ForceDischargePower)
		assert.Equal(t, DefaultMinSOC, p.ForceDischargeSOC)
		assert.Equal(t, DefaultMinSOC, p.MinSOC)
	})

	t.Run("device battery min SOC overrides default", func(t *testing.T) {
		device := types.Device{Battery: &types.Battery{MinSOC: 20}}
		s := AddPhase(types.Schedule{}, types.WorkModeSelfUse, device, now)
		require.Len(t, s.Phases, 1)
		assert.Equal(t, 20, s.Phases[0].MinSOC)
		assert.Equal(t, 20, s.Phases[0].ForceDischargeSOC)
	})

	t.Run("result is sorted by start", func(t *testing.T) {
		existing := types.Schedule{Phases: []types.SchedulePhase{
			phase("b", 20, 0, 21, 0, types.WorkModeSelfUse),
		}}
		s := AddPhase(existing, types.WorkModeSelfUse, types.Device{}, now)
		require.Len(t, s.Phases, 2)
		assert.Equal(t, 14, s.Phases[0].Start.Hour)
		assert.Equal(t, "b", s.Phases[1].ID)
	})

	t.Run("input unchanged", func(t *testing.T) {
		in := types.Schedule{}
		AddPhase(in, types.WorkModeSelfUse, types.Device{}, now)
		assert.Empty(t, in.Phases)
	})
}

func TestFillGaps(t *testing.T) {
	device := types.Device{Battery: &types.Battery{MinSOC: 15}}

	t.Run("empty produces one full-day phase", func(t *testing.T) {
		s := FillGaps(types.Schedule{}, types.WorkModeSelfUse, device)
		require.Len(t, s.Phases, 1)
		p := s.Phases[0]
		assert.Equal(t, types.TimeOfDay{}, p.Start)
		assert.Equal(t, types.TimeOfDay{Hour: 23, Minute: 59}, p.End)
		assert.Equal(t, types.WorkModeSelfUse, p.Mode)
		assert.Equal(t, 15, p.MinSOC)
		assert.Equal(t, 15, p.ForceDischargeSOC)
	})

	t.Run("adjacent phases need no filler", func(t *testing.T) {
		in := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 0, 0, 11, 59, types.WorkModeForceCharge),
			phase("b", 12, 0, 23, 59, types.WorkModeSelfUse),
		}}
		s := FillGaps(in, types.WorkModeSelfUse, device)
		assert.Len(t, s.Phases, 2)
	})

	t.Run("leading interior and trailing gaps", func(t *testing.T) {
		in := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 2, 0, 6, 0, types.WorkModeForceCharge),
			phase("b", 18, 0, 20, 0, types.WorkModeForceDischarge),
		}}
		s := FillGaps(in, types.WorkModeSelfUse, device)
		require.Len(t, s.Phases, 5)

		assert.Equal(t, types.TimeOfDay{}, s.Phases[0].Start)
		assert.Equal(t, types.TimeOfDay{Hour: 1, Minute: 59}, s.Phases[0].End)
		assert.Equal(t, "a", s.Phases[1].ID)
		assert.Equal(t, types.TimeOfDay{Hour: 6, Minute: 1}, s.Phases[2].Start)
		assert.Equal(t, types.TimeOfDay{Hour: 17, Minute: 59}, s.Phases[2].End)
		assert.Equal(t, "b", s.Phases[3].ID)
		assert.Equal(t, types.TimeOfDay{Hour: 20, Minute: 1}, s.Phases[4].Start)
		assert.Equal(t, types.TimeOfDay{Hour: 23, Minute: 59}, s.Phases[4].End)

		// every minute of the day covered exactly once
		assert.Equal(t, 24*60, totalCoveredMinutes(s))
		assert.True(t, s.IsValid())
	})

	t.Run("single-minute gap gets a single-minute filler", func(t *testing.T) {
		in := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 0, 0, 9, 59, types.WorkModeForceCharge),
			phase("b", 10, 2, 23, 59, types.WorkModeSelfUse),
		}}
		s := FillGaps(in, types.WorkModeSelfUse, device)
		require.Len(t, s.Phases, 3)
		assert.Equal(t, types.TimeOfDay{Hour: 10, Minute: 1}, s.Phases[1].Start)
		assert.Equal(t, types.TimeOfDay{Hour: 10, Minute: 1}, s.Phases[1].End)
		assert.Equal(t, 24*60, totalCoveredMinutes(s))
	})

	t.Run("idempotent", func(t *testing.T) {
		in := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 8, 30, 17, 0, types.WorkModeForceDischarge),
		}}
		once := FillGaps(in, types.WorkModeSelfUse, device)
		twice := FillGaps(once, types.WorkModeSelfUse, device)
		assert.Len(t, twice.Phases, len(once.Phases))
		assert.Equal(t, 24*60, totalCoveredMinutes(twice))
	})

	t.Run("input unchanged", func(t *testing.T) {
		in := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 8, 0, 9, 0, types.WorkModeSelfUse),
		}}
		FillGaps(in, types.WorkModeSelfUse, device)
		assert.Len(t, in.Phases, 1)
	})
}

func TestUpdatePhase(t *testing.T) {
	in := types.Schedule{Phases: []types.SchedulePhase{
		phase("a", 0, 0, 7, 59, types.WorkModeSelfUse),
		phase("b", 8, 0, 23, 59, types.WorkModeForceCharge),
	}}

	t.Run("replaces matching id", func(t *testing.T) {
		updated := phase("b", 9, 0, 23, 59, types.WorkModeForceDischarge)
		s := UpdatePhase(in, updated)
		require.Len(t, s.Phases, 2)
		assert.Equal(t, updated, s.Phases[1])
		// input untouched
		assert.Equal(t, types.WorkModeForceCharge, in.Phases[1].Mode)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := UpdatePhase(in, phase("nope", 1, 0, 2, 0, types.WorkModeBackup))
		assert.Equal(t, in, s)
	})

	t.Run("re-sorts when start moves", func(t *testing.T) {
		moved := phase("b", 0, 0, 0, 30, types.WorkModeForceCharge)
		s := UpdatePhase(in, moved)
		assert.Equal(t, "b", s.Phases[0].ID)
	})
}

func TestDeletePhase(t *testing.T) {
	in := types.Schedule{Phases: []types.SchedulePhase{
		phase("a", 0, 0, 7, 59, types.WorkModeSelfUse),
		phase("b", 8, 0, 23, 59, types.WorkModeForceCharge),
	}}

	t.Run("removes matching id", func(t *testing.T) {
		s := DeletePhase(in, "a")
		require.Len(t, s.Phases, 1)
		assert.Equal(t, "b", s.Phases[0].ID)
	})

	t.Run("unknown id returns deep-equal schedule", func(t *testing.T) {
		s := DeletePhase(in, "missing")
		assert.Equal(t, in, s)
	})
}
