package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/energystats/energystats/pkg/log"
)

func (s *Server) handleHistoryPowerFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	snapshots, err := s.storage.GetSnapshotHistory(ctx, device.DeviceSN, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get snapshot history", slog.Any("error", err))
		writeJSONError(w, "failed to get snapshot history", http.StatusInternalServerError)
		return
	}

	setHistoryCacheControl(w, end)
	writeJSON(w, snapshots)
}

func (s *Server) handleHistoryGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := s.storage.GetGenerationHistory(ctx, device.DeviceSN, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get generation history", slog.Any("error", err))
		writeJSONError(w, "failed to get generation history", http.StatusInternalServerError)
		return
	}

	setHistoryCacheControl(w, end)
	writeJSON(w, totals)
}

// setHistoryCacheControl caches completed days for 24 hours and ranges
// touching today for 1 minute.
func setHistoryCacheControl(w http.ResponseWriter, end time.Time) {
	today := time.Now().Truncate(24 * time.Hour)
	if end.Before(today) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		// Default to last 24 hours if not specified
		end := time.Now()
		start := end.Add(-24 * time.Hour)
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > 31*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 31 days")
	}

	return start, end, nil
}
