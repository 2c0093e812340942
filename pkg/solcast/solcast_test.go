package solcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolcast(t *testing.T, handler http.HandlerFunc) *Solcast {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", srv.URL)
}

func TestForecasts(t *testing.T) {
	s := newTestSolcast(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rooftop_sites/site-1/forecasts", r.URL.Path)
		require.Equal(t, "json", r.URL.Query().Get("format"))
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, err := w.Write([]byte(`{"forecasts":[
			{"pv_estimate":1.5,"pv_estimate10":0.8,"pv_estimate90":2.1,"period_end":"2024-06-01T10:30:00Z","period":"PT30M"},
			{"pv_estimate":2.0,"pv_estimate10":1.0,"pv_estimate90":2.8,"period_end":"2024-06-01T11:00:00Z","period":"PT30M"}
		]}`))
		require.NoError(t, err)
	})

	periods, err := s.Forecasts(context.Background(), "site-1")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 1.5, periods[0].PVEstimate)
	assert.Equal(t, 0.8, periods[0].PVEstimate1)
	assert.Equal(t, 2.8, periods[1].PVEstimate9)
	assert.Equal(t, "PT30M", periods[0].Period)
}

func TestForecastsRateLimited(t *testing.T) {
	s := newTestSolcast(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := s.Forecasts(context.Background(), "site-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestForecastsServerError(t *testing.T) {
	s := newTestSolcast(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := s.Forecasts(context.Background(), "site-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestDisabledForecaster(t *testing.T) {
	_, err := disabled{}.Forecasts(context.Background(), "site-1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
