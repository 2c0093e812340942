package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/energystats/energystats/pkg/types"
	"github.com/levenlabs/go-lflag"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrTotalsNotFound   = errors.New("generation totals not found")
)

// Database defines the interface for persisting data and retrieving settings.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, deviceSN string) (types.Settings, int, error)
	SetSettings(ctx context.Context, deviceSN string, settings types.Settings, version int) error

	// Data Persistence
	// UpsertSnapshot adds or updates a power flow snapshot.
	UpsertSnapshot(ctx context.Context, deviceSN string, snapshot types.PowerFlowSnapshot) error
	UpsertGenerationTotals(ctx context.Context, deviceSN string, totals types.GenerationTotals) error

	// History
	GetSnapshotHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.PowerFlowSnapshot, error)
	GetLatestSnapshotTime(ctx context.Context, deviceSN string) (time.Time, error)
	GetGenerationTotals(ctx context.Context, deviceSN string, day time.Time) (types.GenerationTotals, error)
	GetGenerationHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.GenerationTotals, error)

	// Schedule templates
	ListScheduleTemplates(ctx context.Context, deviceSN string) ([]types.Schedule, error)
	GetScheduleTemplate(ctx context.Context, deviceSN, templateID string) (types.Schedule, error)
	SaveScheduleTemplate(ctx context.Context, deviceSN string, template types.Schedule) error
	DeleteScheduleTemplate(ctx context.Context, deviceSN, templateID string) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
