// Package solcast fetches rooftop PV forecasts from the Solcast API.
package solcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/energystats/energystats/pkg/common"
	"github.com/energystats/energystats/pkg/log"
	"github.com/levenlabs/go-lflag"
)

// DefaultBaseURL is the Solcast API endpoint.
const DefaultBaseURL = "https://api.solcast.com.au"

// ErrRateLimited indicates the hobbyist request quota was exhausted.
// Callers should serve cached forecasts until the quota resets.
var ErrRateLimited = errors.New("solcast: rate limited")

// ErrNotConfigured indicates no API key was supplied, so forecasts are
// unavailable.
var ErrNotConfigured = errors.New("solcast: no api key configured")

// ForecastPeriod is one half-hour slice of a rooftop forecast. Estimates
// are in kW; P10 and P90 bound the expected output.
type ForecastPeriod struct {
	PeriodEnd   time.Time `json:"period_end"`
	Period      string    `json:"period"`
	PVEstimate  float64   `json:"pv_estimate"`
	PVEstimate1 float64   `json:"pv_estimate10"`
	PVEstimate9 float64   `json:"pv_estimate90"`
}

// Forecaster fetches PV generation forecasts.
type Forecaster interface {
	// Forecasts returns the upcoming generation periods for a rooftop
	// site.
	Forecasts(ctx context.Context, siteID string) ([]ForecastPeriod, error)
}

// Solcast implements Forecaster against the Solcast rooftop API.
type Solcast struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// New creates a Solcast client.
func New(apiKey, baseURL string) *Solcast {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Solcast{
		client:  common.HTTPClient(time.Minute),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// disabled satisfies Forecaster when no API key is configured.
type disabled struct{}

func (disabled) Forecasts(context.Context, string) ([]ForecastPeriod, error) {
	return nil, ErrNotConfigured
}

// Configured sets up the Solcast client based on flags. Forecasts are
// optional, so an empty API key yields a client that always returns
// ErrNotConfigured.
func Configured() Forecaster {
	apiKey := lflag.String("solcast-api-key", "", "Solcast API key, leave empty to disable forecasts")
	baseURL := lflag.String("solcast-api-url", DefaultBaseURL, "Solcast API base URL")

	var f struct{ Forecaster }

	lflag.Do(func() {
		if *apiKey == "" {
			f.Forecaster = disabled{}
			return
		}
		f.Forecaster = New(*apiKey, *baseURL)
	})

	return &f
}

type forecastsResult struct {
	Forecasts []ForecastPeriod `json:"forecasts"`
}

func (s *Solcast) Forecasts(ctx context.Context, siteID string) ([]ForecastPeriod, error) {
	u, err := url.JoinPath(s.baseURL, "rooftop_sites", siteID, "forecasts")
	if err != nil {
		return nil, err
	}
	u += "?format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("solcast: status %d", resp.StatusCode)
	}

	var res forecastsResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode solcast response: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "solcast forecast fetched",
		slog.String("siteID", siteID),
		slog.Int("periods", len(res.Forecasts)),
	)
	return res.Forecasts, nil
}
