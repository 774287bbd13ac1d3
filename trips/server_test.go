// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package trips

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServerTest seeds a small dataset: five pickups packed into Midtown
// and one far away in Brooklyn.
func setupServerTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo, db := setupTestDB(t)
	seedTrips(t, db, []seedTrip{
		{0, "2016-01-01 12:01:00", 12, "Manhattan", "Midtown Center", 40.7580, -73.9855, 2.1, 15.30},
		{1, "2016-01-01 12:02:00", 12, "Manhattan", "Midtown Center", 40.7581, -73.9854, 1.2, 10.00},
		{2, "2016-01-01 12:03:00", 12, "Manhattan", "Midtown Center", 40.7582, -73.9853, 0.8, 8.40},
		{3, "2016-01-01 12:04:00", 12, "Manhattan", "Midtown Center", 40.7583, -73.9852, 1.5, 12.60},
		{4, "2016-01-01 12:05:00", 12, "Manhattan", "Midtown Center", 40.7584, -73.9851, 2.0, 14.90},
		{5, "2016-01-01 13:00:00", 13, "Brooklyn", "Coney Island", 40.5755, -73.9707, 9.1, 38.20},
	})

	server := NewServer(repo)

	router := gin.New()
	router.GET("/api/kpis", server.getKPIs)
	router.GET("/api/hotspots", server.getHotspots)
	router.GET("/api/trips-per-hour", server.getTripsPerHour)
	router.POST("/api/cluster", server.runClustering)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}

	return w, decoded
}

func TestClusterEndpointThenHotspots(t *testing.T) {
	router := setupServerTest(t)

	// The tight Midtown group forms one hotspot, Coney Island stays noise.
	w, resp := doJSON(t, router, http.MethodPost, "/api/cluster", map[string]any{
		"eps":        0.0001,
		"min_points": 4,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 6, resp["trips"])
	assert.EqualValues(t, 1, resp["clusters"])
	assert.EqualValues(t, 1, resp["noise"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/hotspots", nil)
	require.Equal(t, http.StatusOK, w.Code)

	hotspots, ok := resp["hotspots"].([]any)
	require.True(t, ok)
	require.Len(t, hotspots, 1)

	first, ok := hotspots[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, first["cluster"])
	assert.EqualValues(t, 5, first["trips"])
	assert.NotEmpty(t, first["h3_cell"])
}

func TestClusterEndpointRejectsBadParams(t *testing.T) {
	router := setupServerTest(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/cluster", map[string]any{
		"eps": -1.0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "eps")
}

func TestKPIsEndpoint(t *testing.T) {
	router := setupServerTest(t)

	w, resp := doJSON(t, router, http.MethodGet, "/api/kpis?hour=12&borough=manhattan", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 5, resp["total_trips"])
	assert.Equal(t, "Midtown Center", resp["top_zone"])
}

func TestKPIsEndpointValidation(t *testing.T) {
	router := setupServerTest(t)

	w, _ := doJSON(t, router, http.MethodGet, "/api/kpis?hour=25", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := doJSON(t, router, http.MethodGet, "/api/kpis?borough=Atlantis", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "Atlantis")
}

func TestTripsPerHourEndpoint(t *testing.T) {
	router := setupServerTest(t)

	w, resp := doJSON(t, router, http.MethodGet, "/api/trips-per-hour?borough=Brooklyn", nil)
	require.Equal(t, http.StatusOK, w.Code)

	series, ok := resp["series"].([]any)
	require.True(t, ok)
	require.Len(t, series, 1)

	point, ok := series[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 13, point["hour"])
	assert.EqualValues(t, 1, point["trips"])
}
