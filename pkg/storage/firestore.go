package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// dayLayout is the document ID format for per-day generation totals.
const dayLayout = "2006-01-02"

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. It persists settings, snapshots, generation totals, and
// schedule templates per device.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(deviceSN, name string) (*firestore.CollectionRef, error) {
	if deviceSN == "" {
		return nil, fmt.Errorf("deviceSN cannot be empty")
	}
	return f.client.Collection("devices").Doc(deviceSN).Collection(name), nil
}

// decodeJSONField unmarshals the "json" blob field of a document into dest.
func decodeJSONField(ctx context.Context, doc *firestore.DocumentSnapshot, dest interface{}) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("docID", doc.Ref.ID))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("docID", doc.Ref.ID))
		return fmt.Errorf("document %s 'json' field is not string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), dest); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// GetSettings retrieves the device configuration from the "config/settings"
// document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, deviceSN string) (types.Settings, int, error) {
	coll, err := f.getCollection(deviceSN, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := decodeJSONField(ctx, doc, &s); err != nil {
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the device configuration to the "config/settings"
// document. It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, deviceSN string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(deviceSN, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// UpsertSnapshot adds or updates a power flow snapshot in the
// "snapshot_history" collection as a JSON blob. The document ID is the
// RFC3339 timestamp for efficient range queries.
func (f *FirestoreProvider) UpsertSnapshot(ctx context.Context, deviceSN string, snapshot types.PowerFlowSnapshot) error {
	if snapshot.Timestamp.IsZero() {
		return fmt.Errorf("snapshot missing timestamp")
	}
	jsonBytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	coll, err := f.getCollection(deviceSN, "snapshot_history")
	if err != nil {
		return err
	}
	// Use RFC3339 as document ID for lexicographic ordering and efficient range queries
	docID := snapshot.Timestamp.UTC().Format(time.RFC3339)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": snapshot.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// GetSnapshotHistory retrieves snapshots within the specified time range.
// Uses document ID range queries for efficient filtering without reading
// all documents.
func (f *FirestoreProvider) GetSnapshotHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.PowerFlowSnapshot, error) {
	startDocID := start.UTC().Format(time.RFC3339)
	endDocID := end.UTC().Format(time.RFC3339)

	coll, err := f.getCollection(deviceSN, "snapshot_history")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var snapshots []types.PowerFlowSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating snapshots: %w", err)
		}

		var s types.PowerFlowSnapshot
		if err := decodeJSONField(ctx, doc, &s); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

// GetLatestSnapshotTime retrieves the timestamp of the last stored snapshot.
func (f *FirestoreProvider) GetLatestSnapshotTime(ctx context.Context, deviceSN string) (time.Time, error) {
	coll, err := f.getCollection(deviceSN, "snapshot_history")
	if err != nil {
		return time.Time{}, err
	}
	// firestore automatically creates indexes for top-level fields
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest snapshot doc: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, doc.Ref.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot doc id %s: %w", doc.Ref.ID, err)
	}
	return ts, nil
}

// UpsertGenerationTotals adds or updates a day's generation totals in the
// "generation_totals" collection. The document ID is the day so repeated
// refreshes overwrite the same record.
func (f *FirestoreProvider) UpsertGenerationTotals(ctx context.Context, deviceSN string, totals types.GenerationTotals) error {
	if totals.Day.IsZero() {
		return fmt.Errorf("generation totals missing day")
	}
	jsonBytes, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to marshal generation totals: %w", err)
	}

	coll, err := f.getCollection(deviceSN, "generation_totals")
	if err != nil {
		return err
	}
	docID := totals.Day.UTC().Format(dayLayout)
	_, err = coll.Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": totals.Day,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert generation totals: %w", err)
	}
	return nil
}

// GetGenerationTotals retrieves the stored totals for a single day.
func (f *FirestoreProvider) GetGenerationTotals(ctx context.Context, deviceSN string, day time.Time) (types.GenerationTotals, error) {
	coll, err := f.getCollection(deviceSN, "generation_totals")
	if err != nil {
		return types.GenerationTotals{}, err
	}
	doc, err := coll.Doc(day.UTC().Format(dayLayout)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.GenerationTotals{}, ErrTotalsNotFound
		}
		return types.GenerationTotals{}, fmt.Errorf("failed to fetch generation totals: %w", err)
	}

	var t types.GenerationTotals
	if err := decodeJSONField(ctx, doc, &t); err != nil {
		return types.GenerationTotals{}, err
	}
	return t, nil
}

// GetGenerationHistory retrieves generation totals for days within the
// specified range.
func (f *FirestoreProvider) GetGenerationHistory(ctx context.Context, deviceSN string, start, end time.Time) ([]types.GenerationTotals, error) {
	startDocID := start.UTC().Format(dayLayout)
	endDocID := end.UTC().Format(dayLayout)

	coll, err := f.getCollection(deviceSN, "generation_totals")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var all []types.GenerationTotals
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating generation totals: %w", err)
		}

		var t types.GenerationTotals
		if err := decodeJSONField(ctx, doc, &t); err != nil {
			return nil, err
		}
		all = append(all, t)
	}
	return all, nil
}

// ListScheduleTemplates retrieves all saved schedule templates for a device.
func (f *FirestoreProvider) ListScheduleTemplates(ctx context.Context, deviceSN string) ([]types.Schedule, error) {
	coll, err := f.getCollection(deviceSN, "schedule_templates")
	if err != nil {
		return nil, err
	}
	iter := coll.Documents(ctx)
	defer iter.Stop()

	var templates []types.Schedule
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating schedule templates: %w", err)
		}

		var s types.Schedule
		if err := decodeJSONField(ctx, doc, &s); err != nil {
			// Skip malformed documents
			continue
		}
		templates = append(templates, s)
	}
	return templates, nil
}

// GetScheduleTemplate retrieves a single schedule template by ID.
func (f *FirestoreProvider) GetScheduleTemplate(ctx context.Context, deviceSN, templateID string) (types.Schedule, error) {
	coll, err := f.getCollection(deviceSN, "schedule_templates")
	if err != nil {
		return types.Schedule{}, err
	}
	doc, err := coll.Doc(templateID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Schedule{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return types.Schedule{}, fmt.Errorf("failed to get schedule template %s: %w", templateID, err)
	}

	var s types.Schedule
	if err := decodeJSONField(ctx, doc, &s); err != nil {
		return types.Schedule{}, err
	}
	return s, nil
}

// SaveScheduleTemplate creates or updates a schedule template. The
// template's TemplateID is the document ID.
func (f *FirestoreProvider) SaveScheduleTemplate(ctx context.Context, deviceSN string, template types.Schedule) error {
	if template.TemplateID == "" {
		return fmt.Errorf("schedule template missing templateID")
	}
	jsonBytes, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule template: %w", err)
	}

	coll, err := f.getCollection(deviceSN, "schedule_templates")
	if err != nil {
		return err
	}
	_, err = coll.Doc(template.TemplateID).Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	})
	if err != nil {
		return fmt.Errorf("failed to save schedule template %s: %w", template.TemplateID, err)
	}
	return nil
}

// DeleteScheduleTemplate removes a schedule template.
func (f *FirestoreProvider) DeleteScheduleTemplate(ctx context.Context, deviceSN, templateID string) error {
	coll, err := f.getCollection(deviceSN, "schedule_templates")
	if err != nil {
		return err
	}
	if _, err := coll.Doc(templateID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete schedule template %s: %w", templateID, err)
	}
	return nil
}
