package server

import (
	"log/slog"
	"net/http"

	"github.com/energystats/energystats/pkg/energy"
	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/powerflow"
)

// realTimeVariables is every reading the power flow derivation consumes.
var realTimeVariables = []string{
	"feedinPower", "gridConsumptionPower", "loadsPower", "generationPower",
	"meterPower2", "pvPower", "epsPower",
	"ambientTemperation", "invTemperation",
	"SoC", "SoC_1",
	"pv1Power", "pv2Power", "pv3Power", "pv4Power", "pv5Power", "pv6Power",
}

// integrationVariables is every series the daily totals integrate.
var integrationVariables = []string{
	"meterPower2",
	"pv1Power", "pv2Power", "pv3Power", "pv4Power", "pv5Power", "pv6Power",
}

// handlePowerFlow derives a live power flow snapshot from the latest
// readings without persisting it.
func (s *Server) handlePowerFlow(w http.ResponseWriter, r *http.Request) {
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

	samples, err := s.fox.RealTimeQuery(ctx, device.DeviceSN, realTimeVariables)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to query real-time data", slog.Any("error", err))
		writeJSONError(w, "failed to query real-time data", http.StatusInternalServerError)
		return
	}

	snapshot := powerflow.Calculate(ctx, samples, settings, device, s.now())

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, snapshot)
}

// handleGeneration integrates today's raw power series into per-channel
// energy totals.
func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
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

	now := s.now()
	samples, err := s.fox.HistoryQuery(ctx, device.DeviceSN, integrationVariables, truncateDay(now), now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to query history", slog.Any("error", err))
		writeJSONError(w, "failed to query history", http.StatusInternalServerError)
		return
	}

	totals := energy.Totals(samples, settings, device, truncateDay(now))

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, totals)
}
