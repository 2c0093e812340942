package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/energystats/energystats/pkg/types"
)

var (
	// ErrSessionClosed is returned by edit operations after Commit or
	// Discard.
	ErrSessionClosed = errors.New("edit session closed")
	// ErrInvalidSchedule is returned by Commit when phases overlap.
	ErrInvalidSchedule = errors.New("schedule has overlapping phases")
)

// Saver pushes a schedule to the vendor cloud. Implemented by the FoxESS
// client.
type Saver interface {
	SaveSchedule(ctx context.Context, deviceSN string, schedule types.Schedule) error
}

// Session is an explicit schedule edit session: open a working copy, apply
// edit operations, then Commit to the cloud or Discard. There is no shared
// process-wide edit state; each caller owns its session.
type Session struct {
	mu       sync.Mutex
	deviceSN string
	device   types.Device
	current  types.Schedule
	closed   bool
}

// Open starts an edit session over a working copy of schedule.
func Open(device types.Device, schedule types.Schedule) *Session {
	return &Session{
		deviceSN: device.DeviceSN,
		device:   device,
		current:  schedule.Copy(),
	}
}

// Schedule returns a copy of the current working schedule.
func (s *Session) Schedule() types.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Copy()
}

// AddPhase appends a new phase starting now with the given mode.
func (s *Session) AddPhase(mode types.WorkMode, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.current = AddPhase(s.current, mode, s.device, now)
	return nil
}

// FillGaps covers the uncovered parts of the day with fallback-mode phases.
func (s *Session) FillGaps(fallback types.WorkMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.current = FillGaps(s.current, fallback, s.device)
	return nil
}

// UpdatePhase replaces the phase with a matching id.
func (s *Session) UpdatePhase(phase types.SchedulePhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.current = UpdatePhase(s.current, phase)
	return nil
}

// DeletePhase removes the phase with a matching id.
func (s *Session) DeletePhase(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.current = DeletePhase(s.current, id)
	return nil
}

// Commit validates the working schedule and pushes it to the vendor cloud.
// The session stays open if validation or the save fails so the caller can
// fix up and retry.
func (s *Session) Commit(ctx context.Context, saver Saver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !s.current.IsValid() {
		return ErrInvalidSchedule
	}
	if err := saver.SaveSchedule(ctx, s.deviceSN, s.current); err != nil {
		return err
	}
	s.closed = true
	return nil
}

// Discard closes the session without saving.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
