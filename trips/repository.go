// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

// Package trips stores taxi trip records in DuckDB and aggregates them for
// reporting. Clustering itself lives in the hotspot package; this package
// feeds it pickup coordinates and persists the labels it produces.
package trips

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	h3 "github.com/uber/h3-go/v4"

	"github.com/ridemap/ridemap/spatial"
	"github.com/ridemap/ridemap/utils"
)

// H3 resolutions stored per trip for map rendering. Res 8 (~0.7 km² cells)
// is the one cluster summaries report.
const (
	h3ResCoarse  = 6
	h3ResMid     = 7
	h3ResDisplay = 8
)

// Pickup is one trip's pickup record as the clustering pipeline sees it.
type Pickup struct {
	ID       int64         `json:"id"`
	Point    spatial.Point `json:"point"`
	Hour     int           `json:"hour"`
	Borough  string        `json:"borough"`
	Zone     string        `json:"zone"`
	Distance float64       `json:"trip_distance"`
	Total    float64       `json:"total_amount"`
}

// Filter restricts queries to an hour of day and/or a pickup borough.
// A nil Hour or empty Borough means no restriction.
type Filter struct {
	Hour    *int
	Borough string
}

// KPIReport aggregates the filtered trips for the KPI cards.
type KPIReport struct {
	TotalTrips  int64   `json:"total_trips"`
	Clusters    int     `json:"clusters"`
	AvgDistance float64 `json:"avg_distance_mi"`
	AvgFare     float64 `json:"avg_fare_usd"`
	TopZone     string  `json:"top_zone"`
}

// ClusterSummary describes one hotspot over the filtered trips.
type ClusterSummary struct {
	Cluster     int           `json:"cluster"`
	Trips       int64         `json:"trips"`
	Centroid    spatial.Point `json:"centroid"`
	H3Cell      string        `json:"h3_cell"`
	AvgDistance float64       `json:"avg_distance_mi"`
	AvgFare     float64       `json:"avg_fare_usd"`
}

// HourCount is one point of the trips-per-hour series.
type HourCount struct {
	Hour  int   `json:"hour"`
	Trips int64 `json:"trips"`
}

// Repository defines the database operations for trip records.
type Repository interface {
	// CreateSchema creates the database schema.
	CreateSchema() error
	// ImportCSV bulk-loads a trips CSV, dropping rows without coordinates,
	// borough, or pickup time. Returns the number of rows imported.
	ImportCSV(path string) (int64, error)
	// Pickups returns the filtered pickups ordered by id.
	Pickups(filter Filter) ([]Pickup, error)
	// SaveLabels persists cluster labels for the given trip ids.
	SaveLabels(ids []int64, labels []int) error
	// Boroughs lists the distinct pickup boroughs.
	Boroughs() ([]string, error)
	// KPIs aggregates the filtered trips.
	KPIs(filter Filter) (*KPIReport, error)
	// ClusterSummaries aggregates the filtered trips per cluster.
	ClusterSummaries(filter Filter) ([]ClusterSummary, error)
	// TripsPerHour counts trips per hour of day, optionally for one borough.
	TripsPerHour(borough string) ([]HourCount, error)
}

type sqlRepository struct {
	db *sql.DB
}

// NewSQLRepository wraps a DuckDB connection. The spatial extension is
// loaded eagerly since every query touches the pickup geometry.
func NewSQLRepository(db *sql.DB) (Repository, error) {
	_, err := db.Exec(`INSTALL spatial; LOAD spatial;`)
	if err != nil {
		return nil, err
	}

	return &sqlRepository{db: db}, nil
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS trips (
			id              BIGINT PRIMARY KEY,
			pickup_datetime TIMESTAMP NOT NULL,
			pickup_hour     TINYINT NOT NULL,
			pickup_borough  VARCHAR NOT NULL,
			pickup_zone     VARCHAR,
			pickup_point    GEOMETRY NOT NULL,
			trip_distance   DOUBLE,
			total_amount    DOUBLE,
			h3_res6         BIGINT,
			h3_res7         BIGINT,
			h3_res8         BIGINT,
			cluster         INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("creating trips table: %w", err)
	}

	return nil
}

func (r *sqlRepository) ImportCSV(path string) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO trips (
			id, pickup_datetime, pickup_hour, pickup_borough, pickup_zone,
			pickup_point, trip_distance, total_amount
		)
		SELECT
			coalesce((SELECT max(id) + 1 FROM trips), 0) + row_number() OVER () - 1,
			tpep_pickup_datetime,
			hour(tpep_pickup_datetime),
			pickup_borough,
			pickup_zone,
			ST_Point(pickup_longitude, pickup_latitude),
			trip_distance,
			total_amount
		FROM read_csv(?, header = true)
		WHERE pickup_latitude IS NOT NULL
		  AND pickup_longitude IS NOT NULL
		  AND pickup_borough IS NOT NULL
		  AND tpep_pickup_datetime IS NOT NULL
	`, path)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", path, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := r.backfillH3(); err != nil {
		return rows, fmt.Errorf("computing h3 cells: %w", err)
	}

	return rows, nil
}

// backfillH3 computes the H3 cells of every trip that lacks them.
func (r *sqlRepository) backfillH3() error {
	rows, err := r.db.Query(`
		SELECT id, ST_Y(pickup_point), ST_X(pickup_point)
		FROM trips
		WHERE h3_res8 IS NULL
	`)
	if err != nil {
		return fmt.Errorf("querying pending trips: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id       int64
		lat, lng float64
	}

	var todo []pending

	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.lat, &p.lng); err != nil {
			return fmt.Errorf("scanning trip: %w", err)
		}

		todo = append(todo, p)
	}

	if err := rows.Err(); err != nil {
		return err
	}

	if len(todo) == 0 {
		return nil
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(todo),
			progressbar.OptionSetDescription("Computing H3 cells"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting h3 backfill transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback h3 backfill transaction: %v", err)
		}
	}()

	stmt, err := tx.Prepare(`UPDATE trips SET h3_res6 = ?, h3_res7 = ?, h3_res8 = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range todo {
		cells, err := pickupCells(p.lat, p.lng)
		if err != nil {
			return fmt.Errorf("trip %d: %w", p.id, err)
		}

		if _, err := stmt.Exec(cells[0], cells[1], cells[2], p.id); err != nil {
			return fmt.Errorf("updating trip %d: %w", p.id, err)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				return fmt.Errorf("updating progress bar: %w", err)
			}
		}
	}

	return tx.Commit()
}

// pickupCells returns the H3 cells for a pickup at resolutions 6, 7 and 8.
func pickupCells(lat, lng float64) ([3]int64, error) {
	var cells [3]int64

	latLng := h3.NewLatLng(lat, lng)

	for i, res := range []int{h3ResCoarse, h3ResMid, h3ResDisplay} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return cells, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		cells[i] = int64(cell)
	}

	return cells, nil
}

// where renders the filter as SQL conditions. The returned clause starts
// with AND so it can be appended to queries that already have a WHERE.
func (f Filter) where() (string, []any) {
	var clauses []string

	var args []any

	if f.Hour != nil {
		clauses = append(clauses, "AND pickup_hour = ?")
		args = append(args, *f.Hour)
	}

	if f.Borough != "" {
		clauses = append(clauses, "AND pickup_borough = ?")
		args = append(args, f.Borough)
	}

	return strings.Join(clauses, " "), args
}

func (r *sqlRepository) Pickups(filter Filter) ([]Pickup, error) {
	clause, args := filter.where()

	rows, err := r.db.Query(`
		SELECT
			id, pickup_point, pickup_hour, pickup_borough,
			coalesce(pickup_zone, ''), coalesce(trip_distance, 0), coalesce(total_amount, 0)
		FROM trips
		WHERE 1 = 1 `+clause+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pickups: %w", err)
	}
	defer rows.Close()

	var pickups []Pickup

	for rows.Next() {
		var p Pickup
		if err := rows.Scan(&p.ID, &p.Point, &p.Hour, &p.Borough, &p.Zone, &p.Distance, &p.Total); err != nil {
			return nil, fmt.Errorf("scanning pickup: %w", err)
		}

		pickups = append(pickups, p)
	}

	return pickups, rows.Err()
}

func (r *sqlRepository) SaveLabels(ids []int64, labels []int) error {
	if len(ids) != len(labels) {
		return fmt.Errorf("trips: %d ids but %d labels", len(ids), len(labels))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting labeling transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback labeling transaction: %v", err)
		}
	}()

	stmt, err := tx.Prepare(`UPDATE trips SET cluster = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.Exec(labels[i], id); err != nil {
			return fmt.Errorf("labeling trip %d: %w", id, err)
		}
	}

	return tx.Commit()
}

func (r *sqlRepository) Boroughs() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT pickup_borough FROM trips ORDER BY pickup_borough`)
	if err != nil {
		return nil, fmt.Errorf("querying boroughs: %w", err)
	}
	defer rows.Close()

	var boroughs []string

	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}

		boroughs = append(boroughs, b)
	}

	return boroughs, rows.Err()
}

// ResolveBorough matches user input against the known boroughs, ignoring
// case, accents, and surrounding spaces.
func ResolveBorough(input string, boroughs []string) (string, bool) {
	folded := utils.LowerASCIIFolding(input)

	for _, b := range boroughs {
		if utils.LowerASCIIFolding(b) == folded {
			return b, true
		}
	}

	return "", false
}

func (r *sqlRepository) KPIs(filter Filter) (*KPIReport, error) {
	clause, args := filter.where()

	report := &KPIReport{TopZone: "N/A"}

	err := r.db.QueryRow(`
		SELECT
			count(*),
			count(DISTINCT cluster) FILTER (WHERE cluster IS NOT NULL AND cluster >= 0),
			coalesce(avg(trip_distance), 0),
			coalesce(avg(total_amount), 0)
		FROM trips
		WHERE 1 = 1 `+clause, args...,
	).Scan(&report.TotalTrips, &report.Clusters, &report.AvgDistance, &report.AvgFare)
	if err != nil {
		return nil, fmt.Errorf("aggregating kpis: %w", err)
	}

	// Mode of pickup_zone; ties broken alphabetically so the report is stable.
	err = r.db.QueryRow(`
		SELECT pickup_zone
		FROM trips
		WHERE pickup_zone IS NOT NULL `+clause+`
		GROUP BY pickup_zone
		ORDER BY count(*) DESC, pickup_zone
		LIMIT 1
	`, args...).Scan(&report.TopZone)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("finding top zone: %w", err)
	}

	return report, nil
}

func (r *sqlRepository) ClusterSummaries(filter Filter) ([]ClusterSummary, error) {
	clause, args := filter.where()

	rows, err := r.db.Query(`
		SELECT
			cluster,
			count(*),
			ST_Point(avg(ST_X(pickup_point)), avg(ST_Y(pickup_point))),
			coalesce(avg(trip_distance), 0),
			coalesce(avg(total_amount), 0)
		FROM trips
		WHERE cluster IS NOT NULL AND cluster >= 0 `+clause+`
		GROUP BY cluster
		ORDER BY cluster
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating clusters: %w", err)
	}
	defer rows.Close()

	var summaries []ClusterSummary

	for rows.Next() {
		var s ClusterSummary
		if err := rows.Scan(&s.Cluster, &s.Trips, &s.Centroid, &s.AvgDistance, &s.AvgFare); err != nil {
			return nil, fmt.Errorf("scanning cluster summary: %w", err)
		}

		cell, err := h3.LatLngToCell(h3.NewLatLng(s.Centroid.Lat, s.Centroid.Lng), h3ResDisplay)
		if err != nil {
			return nil, fmt.Errorf("cluster %d centroid: %w", s.Cluster, err)
		}

		s.H3Cell = cell.String()
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (r *sqlRepository) TripsPerHour(borough string) ([]HourCount, error) {
	clause, args := Filter{Borough: borough}.where()

	rows, err := r.db.Query(`
		SELECT pickup_hour, count(*)
		FROM trips
		WHERE 1 = 1 `+clause+`
		GROUP BY pickup_hour
		ORDER BY pickup_hour
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating trips per hour: %w", err)
	}
	defer rows.Close()

	var series []HourCount

	for rows.Next() {
		var h HourCount
		if err := rows.Scan(&h.Hour, &h.Trips); err != nil {
			return nil, err
		}

		series = append(series, h)
	}

	return series, rows.Err()
}
