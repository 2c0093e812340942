// Package storagemock provides a testify mock of the storage.Database
// interface for tests.
package storagemock

import (
	"context"
	"time"

	"github.com/energystats/energystats/pkg/storage"
	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, deviceSN string) (types.Settings, int, error) {
	args := m.Called(ctx, deviceSN)
	return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
}

func (m *MockDatabase) SetSettings(ctx context.Context, deviceSN string, settings types.Settings, version int) error {
	args := m.Called(ctx, deviceSN, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) UpsertSnapshot(ctx context.Context, deviceSN string, snapshot types.PowerFlowSnapshot) error {
	args := m.Called(ctx, deviceSN, snapshot)
	return args.Error(0)
}

func (m *MockDatabase) UpsertGenerationTotals(ctx context.Context, deviceSN string, totals types.GenerationTotals) error {
	args := m.Called(ctx, deviceSN, totals)
	return args.Error(0)
}

func (m *MockDatabase) GetSnapshotHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.PowerFlowSnapshot, error) {
	args := m.Called(ctx, deviceSN, start, end)
	var snapshots []types.PowerFlowSnapshot
	if args.Get(0) != nil {
		snapshots = args.Get(0).([]types.PowerFlowSnapshot)
	}
	return snapshots, args.Error(1)
}

func (m *MockDatabase) GetLatestSnapshotTime(ctx context.Context, deviceSN string) (time.Time, error) {
	args := m.Called(ctx, deviceSN)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockDatabase) GetGenerationTotals(ctx context.Context, deviceSN string, day time.Time) (types.GenerationTotals, error) {
	args := m.Called(ctx, deviceSN, day)
	return args.Get(0).(types.GenerationTotals), args.Error(1)
}

func (m *MockDatabase) GetGenerationHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.GenerationTotals, error) {
	args := m.Called(ctx, deviceSN, start, end)
	var totals []types.GenerationTotals
	if args.Get(0) != nil {
		totals = args.Get(0).([]types.GenerationTotals)
	}
	return totals, args.Error(1)
}

func (m *MockDatabase) ListScheduleTemplates(ctx context.Context, deviceSN string) ([]types.Schedule, error) {
	args := m.Called(ctx, deviceSN)
	var templates []types.Schedule
	if args.Get(0) != nil {
		templates = args.Get(0).([]types.Schedule)
	}
	return templates, args.Error(1)
}

func (m *MockDatabase) GetScheduleTemplate(ctx context.Context, deviceSN, templateID string) (types.Schedule, error) {
	args := m.Called(ctx, deviceSN, templateID)
	return args.Get(0).(types.Schedule), args.Error(1)
}

func (m *MockDatabase) SaveScheduleTemplate(ctx context.Context, deviceSN string, template types.Schedule) error {
	args := m.Called(ctx, deviceSN, template)
	return args.Error(0)
}

func (m *MockDatabase) DeleteScheduleTemplate(ctx context.Context, deviceSN, templateID string) error {
	args := m.Called(ctx, deviceSN, templateID)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
