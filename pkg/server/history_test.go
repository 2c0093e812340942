package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/energystats/energystats/pkg/storage/storagemock"
	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHistoryPowerFlow(t *testing.T) {
	snapshots := []types.PowerFlowSnapshot{
		{Timestamp: testNoon.Add(-time.Hour), SolarKW: 2.0},
		{Timestamp: testNoon, SolarKW: 3.5},
	}

	db := &storagemock.MockDatabase{}
	db.On("GetSnapshotHistory", mock.Anything, "MOCK-H1-001", mock.Anything, mock.Anything).Return(snapshots, nil)

	srv := newTestServer(newMockFox(), db)

	req := httptest.NewRequest("GET", "/api/history/powerflow?start=2024-06-01T00:00:00Z&end=2024-06-01T23:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "3.5")
	// historical day is cacheable
	assert.Equal(t, "private, max-age=86400", w.Result().Header.Get("Cache-Control"))
}

func TestHistoryGeneration(t *testing.T) {
	totals := []types.GenerationTotals{
		{Day: testNoon.Add(-24 * time.Hour), TotalKWH: 12.5},
	}

	db := &storagemock.MockDatabase{}
	db.On("GetGenerationHistory", mock.Anything, "MOCK-H1-001", mock.Anything, mock.Anything).Return(totals, nil)

	srv := newTestServer(newMockFox(), db)

	req := httptest.NewRequest("GET", "/api/history/generation?start=2024-05-31T00:00:00Z&end=2024-06-01T00:00:00Z", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "12.5")
}

func TestHistoryInvalidRange(t *testing.T) {
	srv := newTestServer(newMockFox(), &storagemock.MockDatabase{})

	for name, query := range map[string]string{
		"BadStart": "start=yesterday&end=2024-06-01T00:00:00Z",
		"BadEnd":   "start=2024-06-01T00:00:00Z&end=tomorrow",
		"Inverted": "start=2024-06-02T00:00:00Z&end=2024-06-01T00:00:00Z",
		"TooLong":  "start=2024-01-01T00:00:00Z&end=2024-06-01T00:00:00Z",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/history/powerflow?"+query, nil)
			w := httptest.NewRecorder()
			srv.setupHandler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestParseTimeRangeDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/history/powerflow", nil)
	start, end, err := parseTimeRange(req)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), end, time.Second)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), start, time.Second)
}
