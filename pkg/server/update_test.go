package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/energystats/energystats/pkg/storage/storagemock"
	"github.com/energystats/energystats/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	db := &storagemock.MockDatabase{}
	expectSettings(db, currentSettings())

	var savedSnapshot types.PowerFlowSnapshot
	db.On("UpsertSnapshot", mock.Anything, "MOCK-H1-001", mock.Anything).
		Run(func(args mock.Arguments) {
			savedSnapshot = args.Get(2).(types.PowerFlowSnapshot)
		}).Return(nil)

	var savedTotals types.GenerationTotals
	db.On("UpsertGenerationTotals", mock.Anything, "MOCK-H1-001", mock.Anything).
		Run(func(args mock.Arguments) {
			savedTotals = args.Get(2).(types.GenerationTotals)
		}).Return(nil)

	srv := newTestServer(newMockFox(), db)

	req := httptest.NewRequest("POST", "/api/update", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status   string                  `json:"status"`
		Snapshot types.PowerFlowSnapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)

	// the mock inverter is generating at midday
	assert.Greater(t, savedSnapshot.SolarKW, 0.0)
	assert.Greater(t, savedSnapshot.HomeKW, 0.0)
	assert.Equal(t, 75.0, savedSnapshot.BatterySOC)
	assert.False(t, savedSnapshot.Timestamp.IsZero())

	// totals integrate the morning's generation
	assert.Greater(t, savedTotals.TotalKWH, 0.0)
	assert.NotEmpty(t, savedTotals.Strings)

	db.AssertExpectations(t)
}

func TestUpdateSnapshotPersistFailure(t *testing.T) {
	db := &storagemock.MockDatabase{}
	expectSettings(db, currentSettings())
	db.On("UpsertSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("firestore down"))

	srv := newTestServer(newMockFox(), db)

	req := httptest.NewRequest("POST", "/api/update", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	db.AssertNotCalled(t, "UpsertGenerationTotals", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateTotalsFailureIsNonFatal(t *testing.T) {
	db := &storagemock.MockDatabase{}
	expectSettings(db, currentSettings())
	db.On("UpsertSnapshot", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	db.On("UpsertGenerationTotals", mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("firestore down"))

	srv := newTestServer(newMockFox(), db)

	req := httptest.NewRequest("POST", "/api/update", nil)
	w := httptest.NewRecorder()
	srv.setupHandler().ServeHTTP(w, req)

	// the snapshot made it, so the cycle still reports success
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "success")
}
