package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleIsValid(t *testing.T) {
	phase := func(sh, sm, eh, em int) SchedulePhase {
		return SchedulePhase{
			Start: TimeOfDay{Hour: sh, Minute: sm},
			End:   TimeOfDay{Hour: eh, Minute: em},
			Mode:  WorkModeSelfUse,
		}
	}

	t.Run("empty", func(t *testing.T) {
		assert.True(t, Schedule{}.IsValid())
	})

	t.Run("adjacent phases", func(t *testing.T) {
		s := Schedule{Phases: []SchedulePhase{
			phase(0, 0, 11, 59),
			phase(12, 0, 23, 59),
		}}
		assert.True(t, s.IsValid())
	})

	t.Run("overlap", func(t *testing.T) {
		s := Schedule{Phases: []SchedulePhase{
			phase(0, 0, 12, 0),
			phase(12, 0, 23, 59),
		}}
		assert.False(t, s.IsValid())
	})

	t.Run("unsorted input", func(t *testing.T) {
		s := Schedule{Phases: []SchedulePhase{
			phase(12, 0, 23, 59),
			phase(0, 0, 11, 59),
		}}
		assert.True(t, s.IsValid())
	})

	t.Run("single-minute phase allowed", func(t *testing.T) {
		s := Schedule{Phases: []SchedulePhase{phase(10, 0, 10, 0)}}
		assert.True(t, s.IsValid())
	})

	t.Run("inverted phase", func(t *testing.T) {
		s := Schedule{Phases: []SchedulePhase{phase(14, 0, 10, 0)}}
		assert.False(t, s.IsValid())
	})
}

func TestTimeOfDay(t *testing.T) {
	assert.Equal(t, 0, TimeOfDay{}.TotalMinutes())
	assert.Equal(t, 1439, TimeOfDay{Hour: 23, Minute: 59}.TotalMinutes())
	assert.Equal(t, TimeOfDay{Hour: 10, Minute: 30}, TimeOfDayFromMinutes(630))
	assert.True(t, TimeOfDay{Hour: 9}.Before(TimeOfDay{Hour: 9, Minute: 1}))
	assert.False(t, TimeOfDay{Hour: 9}.After(TimeOfDay{Hour: 9}))
	assert.Equal(t, "07:05", TimeOfDay{Hour: 7, Minute: 5}.String())
}

func TestWorkModeDetails(t *testing.T) {
	info := WorkModeDetails(WorkModeForceDischarge)
	assert.Equal(t, "Force Discharge", info.Title)
	assert.Equal(t, "red", info.ColorTag)

	unknown := WorkModeDetails(WorkMode("Mystery"))
	assert.Equal(t, "Mystery", unknown.Title)
	assert.Empty(t, unknown.ColorTag)
}

func TestScheduleCopy(t *testing.T) {
	maxSOC := 95
	s := Schedule{
		Name: "weekday",
		Phases: []SchedulePhase{{
			ID:     "a",
			Start:  TimeOfDay{Hour: 1},
			End:    TimeOfDay{Hour: 2},
			MaxSOC: &maxSOC,
		}},
	}
	c := s.Copy()
	c.Phases[0].Start = TimeOfDay{Hour: 5}
	*c.Phases[0].MaxSOC = 50

	assert.Equal(t, 1, s.Phases[0].Start.Hour)
	assert.Equal(t, 95, *s.Phases[0].MaxSOC)
}
