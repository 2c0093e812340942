package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSaver struct {
	saved    []types.Schedule
	deviceSN string
	err      error
}

func (f *fakeSaver) SaveSchedule(_ context.Context, deviceSN string, schedule types.Schedule) error {
	if f.err != nil {
		return f.err
	}
	f.deviceSN = deviceSN
	f.saved = append(f.saved, schedule)
	return nil
}

func TestSession(t *testing.T) {
	device := types.Device{DeviceSN: "SN123", Battery: &types.Battery{MinSOC: 12}}
	now := time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC)

	t.Run("edit and commit", func(t *testing.T) {
		sess := Open(device, types.Schedule{Name: "weekday"})
		require.NoError(t, sess.AddPhase(types.WorkModeForceCharge, now))
		require.NoError(t, sess.FillGaps(types.WorkModeSelfUse))

		saver := &fakeSaver{}
		require.NoError(t, sess.Commit(context.Background(), saver))
		require.Len(t, saver.saved, 1)
		assert.Equal(t, "SN123", saver.deviceSN)
		assert.True(t, saver.saved[0].IsValid())

		// session is closed after commit
		assert.ErrorIs(t, sess.AddPhase(types.WorkModeSelfUse, now), ErrSessionClosed)
	})

	t.Run("working copy does not leak", func(t *testing.T) {
		orig := types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 1, 0, 2, 0, types.WorkModeSelfUse),
		}}
		sess := Open(device, orig)
		require.NoError(t, sess.DeletePhase("a"))
		assert.Len(t, orig.Phases, 1)
		assert.Empty(t, sess.Schedule().Phases)

		// mutating the returned copy doesn't touch the session
		got := sess.Schedule()
		got.Name = "changed"
		assert.Empty(t, sess.Schedule().Name)
	})

	t.Run("commit rejects overlapping phases", func(t *testing.T) {
		sess := Open(device, types.Schedule{Phases: []types.SchedulePhase{
			phase("a", 1, 0, 12, 0, types.WorkModeSelfUse),
			phase("b", 12, 0, 20, 0, types.WorkModeForceCharge),
		}})
		saver := &fakeSaver{}
		assert.ErrorIs(t, sess.Commit(context.Background(), saver), ErrInvalidSchedule)
		assert.Empty(t, saver.saved)

		// still open: fix the overlap and retry
		require.NoError(t, sess.UpdatePhase(phase("b", 12, 1, 20, 0, types.WorkModeForceCharge)))
		require.NoError(t, sess.Commit(context.Background(), saver))
		assert.Len(t, saver.saved, 1)
	})

	t.Run("save failure keeps session open", func(t *testing.T) {
		sess := Open(device, types.Schedule{})
		saver := &fakeSaver{err: errors.New("cloud down")}
		require.Error(t, sess.Commit(context.Background(), saver))
		assert.NoError(t, sess.FillGaps(types.WorkModeSelfUse))
	})

	t.Run("discard closes", func(t *testing.T) {
		sess := Open(device, types.Schedule{})
		sess.Discard()
		assert.ErrorIs(t, sess.FillGaps(types.WorkModeSelfUse), ErrSessionClosed)
		assert.ErrorIs(t, sess.Commit(context.Background(), &fakeSaver{}), ErrSessionClosed)
	})
}
