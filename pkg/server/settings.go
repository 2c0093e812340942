package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/types"
)

// getSettingsWithMigration loads the stored settings and runs any pending
// migrations, persisting the migrated settings best-effort.
func (s *Server) getSettingsWithMigration(ctx context.Context, deviceSN string) (types.Settings, error) {
	settings, version, err := s.storage.GetSettings(ctx, deviceSN)
	if err != nil {
		return types.Settings{}, err
	}

	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			settings = newSettings
			if err := s.storage.SetSettings(ctx, deviceSN, newSettings, types.CurrentSettingsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
				// Return migrated settings even if save failed, so current request works with new defaults
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
			}
		}
	}

	return settings, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	device, err := s.getDevice(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		writeJSONError(w, "failed to get device", http.StatusInternalServerError)
		return
	}

	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if newSettings.MinSOC < 0 || newSettings.MinSOC > 100 {
		writeJSONError(w, "minimum battery SOC must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if newSettings.RefreshIntervalSeconds < 5 {
		writeJSONError(w, "refresh interval must be at least 5 seconds", http.StatusBadRequest)
		return
	}
	for key := range newSettings.StringNames {
		if !validStringKey(key) {
			writeJSONError(w, "unknown string name key: "+key, http.StatusBadRequest)
			return
		}
	}
	newSettings.DeviceSN = device.DeviceSN

	if err := s.storage.SetSettings(ctx, device.DeviceSN, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "settings updated", slog.String("email", requestEmail(r)))
	w.WriteHeader(http.StatusOK)
}

func validStringKey(key string) bool {
	for _, st := range types.AllStringTypes {
		if key == string(st) {
			return true
		}
	}
	return false
}
