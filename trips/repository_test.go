// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package trips

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewSQLRepository(db)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSchema())

	return repo, db
}

type seedTrip struct {
	id       int64
	datetime string
	hour     int
	borough  string
	zone     string
	lat, lng float64
	distance float64
	amount   float64
}

func seedTrips(t *testing.T, db *sql.DB, rows []seedTrip) {
	t.Helper()

	for _, r := range rows {
		_, err := db.Exec(`
			INSERT INTO trips (
				id, pickup_datetime, pickup_hour, pickup_borough, pickup_zone,
				pickup_point, trip_distance, total_amount
			) VALUES (?, CAST(? AS TIMESTAMP), ?, ?, ?, ST_Point(?, ?), ?, ?)
		`, r.id, r.datetime, r.hour, r.borough, r.zone, r.lng, r.lat, r.distance, r.amount)
		require.NoError(t, err)
	}
}

func defaultSeed() []seedTrip {
	return []seedTrip{
		{0, "2016-01-01 12:01:00", 12, "Manhattan", "Midtown Center", 40.7580, -73.9855, 2.1, 15.30},
		{1, "2016-01-01 12:05:00", 12, "Manhattan", "Midtown Center", 40.7582, -73.9850, 1.4, 11.80},
		{2, "2016-01-01 12:20:00", 12, "Manhattan", "Penn Station", 40.7506, -73.9935, 3.0, 18.50},
		{3, "2016-01-01 08:10:00", 8, "Brooklyn", "Williamsburg", 40.7081, -73.9571, 4.2, 22.00},
		{4, "2016-01-01 08:45:00", 8, "Brooklyn", "Williamsburg", 40.7090, -73.9580, 1.9, 12.10},
		{5, "2016-01-01 08:55:00", 8, "Manhattan", "Midtown Center", 40.7575, -73.9860, 2.6, 16.70},
	}
}

func TestCreateSchemaIsIdempotent(t *testing.T) {
	repo, _ := setupTestDB(t)
	assert.NoError(t, repo.CreateSchema())
}

func TestImportCSV(t *testing.T) {
	repo, db := setupTestDB(t)

	csv := "tpep_pickup_datetime,pickup_latitude,pickup_longitude,pickup_borough,pickup_zone,trip_distance,total_amount\n" +
		"2016-01-01 12:01:00,40.7580,-73.9855,Manhattan,Midtown Center,2.1,15.30\n" +
		"2016-01-01 12:05:00,40.7582,-73.9850,Manhattan,Midtown Center,1.4,11.80\n" +
		"2016-01-01 08:10:00,,,Brooklyn,Williamsburg,4.2,22.00\n" +
		"2016-01-01 08:45:00,40.7090,-73.9580,Brooklyn,Williamsburg,1.9,12.10\n"

	path := filepath.Join(t.TempDir(), "trips.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	rows, err := repo.ImportCSV(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows, "row without coordinates must be dropped")

	pickups, err := repo.Pickups(Filter{})
	require.NoError(t, err)
	require.Len(t, pickups, 3)

	// Ids are assigned by import order, the labels join back on them.
	assert.Equal(t, int64(0), pickups[0].ID)
	assert.Equal(t, 12, pickups[0].Hour)
	assert.Equal(t, "Manhattan", pickups[0].Borough)
	assert.InDelta(t, 40.7580, pickups[0].Point.Lat, 1e-6)
	assert.InDelta(t, -73.9855, pickups[0].Point.Lng, 1e-6)

	var missing int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM trips WHERE h3_res8 IS NULL`).Scan(&missing))
	assert.Zero(t, missing, "every imported trip gets its H3 cells")
}

func TestImportCSVAppendsAfterExistingTrips(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	csv := "tpep_pickup_datetime,pickup_latitude,pickup_longitude,pickup_borough,pickup_zone,trip_distance,total_amount\n" +
		"2016-01-02 09:00:00,40.7580,-73.9855,Manhattan,Midtown Center,2.0,14.00\n"

	path := filepath.Join(t.TempDir(), "more.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	rows, err := repo.ImportCSV(path)
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	pickups, err := repo.Pickups(Filter{})
	require.NoError(t, err)
	require.Len(t, pickups, 7)
	assert.Equal(t, int64(6), pickups[6].ID)
}

func TestPickupsFilter(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	hour := 8

	tests := []struct {
		name    string
		filter  Filter
		wantIDs []int64
	}{
		{name: "no filter", filter: Filter{}, wantIDs: []int64{0, 1, 2, 3, 4, 5}},
		{name: "by hour", filter: Filter{Hour: &hour}, wantIDs: []int64{3, 4, 5}},
		{name: "by borough", filter: Filter{Borough: "Brooklyn"}, wantIDs: []int64{3, 4}},
		{name: "hour and borough", filter: Filter{Hour: &hour, Borough: "Manhattan"}, wantIDs: []int64{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pickups, err := repo.Pickups(tt.filter)
			require.NoError(t, err)

			ids := make([]int64, len(pickups))
			for i, p := range pickups {
				ids[i] = p.ID
			}

			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSaveLabelsAndClusterSummaries(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	// Midtown trips form hotspot 0, Williamsburg trips hotspot 1, the
	// Penn Station trip is noise.
	err := repo.SaveLabels(
		[]int64{0, 1, 2, 3, 4, 5},
		[]int{0, 0, -1, 1, 1, 0},
	)
	require.NoError(t, err)

	summaries, err := repo.ClusterSummaries(Filter{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 0, summaries[0].Cluster)
	assert.Equal(t, int64(3), summaries[0].Trips)
	assert.InDelta(t, 40.7579, summaries[0].Centroid.Lat, 0.001)
	assert.NotEmpty(t, summaries[0].H3Cell)

	assert.Equal(t, 1, summaries[1].Cluster)
	assert.Equal(t, int64(2), summaries[1].Trips)

	brooklynOnly, err := repo.ClusterSummaries(Filter{Borough: "Brooklyn"})
	require.NoError(t, err)
	require.Len(t, brooklynOnly, 1)
	assert.Equal(t, 1, brooklynOnly[0].Cluster)
}

func TestSaveLabelsLengthMismatch(t *testing.T) {
	repo, _ := setupTestDB(t)

	err := repo.SaveLabels([]int64{1, 2}, []int{0})
	assert.Error(t, err)
}

func TestKPIs(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	require.NoError(t, repo.SaveLabels(
		[]int64{0, 1, 2, 3, 4, 5},
		[]int{0, 0, -1, 1, 1, 0},
	))

	report, err := repo.KPIs(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), report.TotalTrips)
	assert.Equal(t, 2, report.Clusters)
	assert.Equal(t, "Midtown Center", report.TopZone)
	assert.InDelta(t, (2.1+1.4+3.0+4.2+1.9+2.6)/6, report.AvgDistance, 1e-9)
	assert.InDelta(t, (15.30+11.80+18.50+22.00+12.10+16.70)/6, report.AvgFare, 1e-9)

	hour := 12
	midday, err := repo.KPIs(Filter{Hour: &hour})
	require.NoError(t, err)
	assert.Equal(t, int64(3), midday.TotalTrips)
}

func TestKPIsEmptySelection(t *testing.T) {
	repo, _ := setupTestDB(t)

	report, err := repo.KPIs(Filter{})
	require.NoError(t, err)
	assert.Zero(t, report.TotalTrips)
	assert.Zero(t, report.Clusters)
	assert.Equal(t, "N/A", report.TopZone)
}

func TestTripsPerHour(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	series, err := repo.TripsPerHour("")
	require.NoError(t, err)
	assert.Equal(t, []HourCount{{Hour: 8, Trips: 3}, {Hour: 12, Trips: 3}}, series)

	manhattan, err := repo.TripsPerHour("Manhattan")
	require.NoError(t, err)
	assert.Equal(t, []HourCount{{Hour: 8, Trips: 1}, {Hour: 12, Trips: 3}}, manhattan)
}

func TestBoroughs(t *testing.T) {
	repo, db := setupTestDB(t)
	seedTrips(t, db, defaultSeed())

	boroughs, err := repo.Boroughs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Brooklyn", "Manhattan"}, boroughs)
}

func TestResolveBorough(t *testing.T) {
	boroughs := []string{"Brooklyn", "Manhattan", "Queens"}

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "Manhattan", want: "Manhattan", ok: true},
		{input: "  MANHATTAN ", want: "Manhattan", ok: true},
		{input: "mánhattan", want: "Manhattan", ok: true},
		{input: "queens", want: "Queens", ok: true},
		{input: "Staten Island", want: "", ok: false},
		{input: "", want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			got, ok := ResolveBorough(tt.input, boroughs)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
