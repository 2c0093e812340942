package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/energystats/energystats/pkg/foxess"
	"github.com/energystats/energystats/pkg/log"
	"github.com/energystats/energystats/pkg/schedule"
	"github.com/energystats/energystats/pkg/solcast"
	"github.com/energystats/energystats/pkg/storage"
	"github.com/energystats/energystats/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const authTokenCookie = "auth_token"

type contextKey string

const emailContextKey contextKey = "email"

// tokenVerifier is a function that validates an OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP API for the EnergyStats system. It orchestrates
// the FoxESS cloud, the forecast provider, and storage.
type Server struct {
	fox      foxess.Client
	forecast solcast.Forecaster
	storage  storage.Database

	listenAddr    string
	deviceSN      string
	solcastSiteID string
	oidcVerifier  tokenVerifier
	bypassAuth    bool
	serverName    string
	httpServer    *http.Server

	// now is swapped out in tests
	now func() time.Time

	mu      sync.Mutex
	device  *types.Device
	session *schedule.Session
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(fox foxess.Client, forecast solcast.Forecaster, db storage.Database) *Server {
	srv := &Server{
		fox:        fox,
		forecast:   forecast,
		storage:    db,
		serverName: "energystats",
		now:        time.Now,
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	deviceSN := lflag.String("device-sn", "", "Inverter serial to operate on, defaults to the first device on the account")
	solcastSiteID := lflag.String("solcast-site-id", "", "Solcast rooftop site ID for forecasts")
	oidcAudience := lflag.String("oidc-audience", "", "OIDC audience/client ID to validate bearer tokens against")
	bypassAuth := lflag.Bool("bypass-auth", false, "Disable authentication (development only)")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.deviceSN = *deviceSN
		srv.solcastSiteID = *solcastSiteID
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifier = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
		}
		srv.bypassAuth = *bypassAuth
		if srv.oidcVerifier == nil && !srv.bypassAuth {
			log.Ctx(context.Background()).Error("either oidc-audience or bypass-auth is required")
			os.Exit(1)
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/update", s.handleUpdate)
	apiMux.HandleFunc("GET /api/devices", s.handleListDevices)
	apiMux.HandleFunc("GET /api/powerflow", s.handlePowerFlow)
	apiMux.HandleFunc("GET /api/generation", s.handleGeneration)
	apiMux.HandleFunc("GET /api/history/powerflow", s.handleHistoryPowerFlow)
	apiMux.HandleFunc("GET /api/history/generation", s.handleHistoryGeneration)
	apiMux.HandleFunc("GET /api/settings", s.handleGetSettings)
	apiMux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	apiMux.HandleFunc("GET /api/schedule", s.handleGetSchedule)
	apiMux.HandleFunc("POST /api/schedule/edit", s.handleEditSchedule)
	apiMux.HandleFunc("POST /api/schedule/phases", s.handleAddPhase)
	apiMux.HandleFunc("PUT /api/schedule/phases/{id}", s.handleUpdatePhase)
	apiMux.HandleFunc("DELETE /api/schedule/phases/{id}", s.handleDeletePhase)
	apiMux.HandleFunc("POST /api/schedule/fill", s.handleFillGaps)
	apiMux.HandleFunc("POST /api/schedule/save", s.handleSaveSchedule)
	apiMux.HandleFunc("POST /api/schedule/discard", s.handleDiscardSchedule)
	apiMux.HandleFunc("GET /api/templates", s.handleListTemplates)
	apiMux.HandleFunc("POST /api/templates", s.handleSaveTemplate)
	apiMux.HandleFunc("DELETE /api/templates/{id}", s.handleDeleteTemplate)
	apiMux.HandleFunc("POST /api/templates/{id}/activate", s.handleActivateTemplate)
	apiMux.HandleFunc("GET /api/forecast", s.handleForecast)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// getDevice returns the inverter the server operates on, fetching the
// device list and battery settings on first use.
func (s *Server) getDevice(ctx context.Context) (types.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		return *s.device, nil
	}

	devices, err := s.fox.ListDevices(ctx)
	if err != nil {
		return types.Device{}, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return types.Device{}, fmt.Errorf("no devices on account")
	}

	var device types.Device
	if s.deviceSN == "" {
		device = devices[0]
	} else {
		found := false
		for _, d := range devices {
			if d.DeviceSN == s.deviceSN {
				device = d
				found = true
				break
			}
		}
		if !found {
			return types.Device{}, fmt.Errorf("device %s not found on account", s.deviceSN)
		}
	}

	if device.HasBattery {
		battery, err := s.fox.GetBatterySettings(ctx, device.DeviceSN)
		if err != nil {
			// non-fatal, MinSOC falls back to the default
			log.Ctx(ctx).WarnContext(ctx, "failed to get battery settings", slog.Any("error", err))
		} else {
			device.Battery = &battery
		}
	}

	s.device = &device
	return device, nil
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	devices, err := s.fox.ListDevices(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list devices", slog.Any("error", err))
		writeJSONError(w, "failed to list devices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, devices)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.solcastSiteID == "" {
		writeJSONError(w, "no solcast site configured", http.StatusNotFound)
		return
	}
	periods, err := s.forecast.Forecasts(ctx, s.solcastSiteID)
	if err != nil {
		if errors.Is(err, solcast.ErrNotConfigured) {
			writeJSONError(w, "forecasts not configured", http.StatusNotFound)
			return
		}
		if errors.Is(err, solcast.ErrRateLimited) {
			writeJSONError(w, "forecast quota exhausted", http.StatusTooManyRequests)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get forecast", slog.Any("error", err))
		writeJSONError(w, "failed to get forecast", http.StatusInternalServerError)
		return
	}

	// forecasts only change when solcast refreshes, cache briefly
	w.Header().Set("Cache-Control", "private, max-age=300")
	writeJSON(w, periods)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
