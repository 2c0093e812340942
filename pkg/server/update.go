package server

import (
	"log/slog"
	"net/http"

	"github.com/energystats/energystats/pkg/energy"
	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/powerflow"
)

// handleUpdate runs one refresh cycle: fetch the latest readings, derive a
// power flow snapshot, integrate today's totals, and persist both. It is
// meant to be hit on a schedule (e.g. Cloud Scheduler).
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, device.DeviceSN)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).DebugContext(ctx, "update: settings loaded", slog.String("deviceSN", device.DeviceSN))

	now := s.now()

	// 1. Derive and persist the power flow snapshot
	samples, err := s.fox.RealTimeQuery(ctx, device.DeviceSN, realTimeVariables)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to query real-time data", slog.Any("error", err))
		writeJSONError(w, "failed to query real-time data", http.StatusInternalServerError)
		return
	}

	snapshot := powerflow.Calculate(ctx, samples, settings, device, now)
	if err := s.storage.UpsertSnapshot(ctx, device.DeviceSN, snapshot); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to upsert snapshot", slog.Any("error", err))
		writeJSONError(w, "failed to persist snapshot", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).DebugContext(ctx, "update: snapshot persisted",
		slog.Float64("solarKW", snapshot.SolarKW),
		slog.Float64("homeKW", snapshot.HomeKW),
		slog.Float64("gridKW", snapshot.GridKW),
	)

	// 2. Integrate and persist today's generation totals. Snapshot
	// persistence already succeeded so a totals failure is non-fatal.
	day := truncateDay(now)
	history, err := s.fox.HistoryQuery(ctx, device.DeviceSN, integrationVariables, day, now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to query history", slog.Any("error", err))
	} else {
		totals := energy.Totals(history, settings, device, day)
		if err := s.storage.UpsertGenerationTotals(ctx, device.DeviceSN, totals); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to upsert generation totals", slog.Any("error", err))
		} else {
			log.Ctx(ctx).DebugContext(ctx, "update: generation totals persisted", slog.Float64("totalKWH", totals.TotalKWH))
		}
	}

	writeJSON(w, map[string]interface{}{
		"status":   "success",
		"snapshot": snapshot,
	})
}
