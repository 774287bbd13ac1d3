// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridemap/ridemap/hotspot"
	"github.com/ridemap/ridemap/spatial"
	"github.com/ridemap/ridemap/trips"
	"github.com/ridemap/ridemap/utils"
)

var clusterOptions struct {
	eps       float64
	epsKm     float64
	minPoints int
	hour      int
	borough   string
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Detect pickup hotspots and store the labels",
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := hotspot.Params{Eps: clusterOptions.eps, MinPoints: clusterOptions.minPoints}
		if cmd.Flags().Changed("eps-km") {
			if cmd.Flags().Changed("eps") {
				return fmt.Errorf("--eps and --eps-km are mutually exclusive")
			}

			params.Eps = spatial.Radians(clusterOptions.epsKm)
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		repo, err := trips.NewSQLRepository(db)
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		filter := trips.Filter{}
		if cmd.Flags().Changed("hour") {
			if clusterOptions.hour < 0 || clusterOptions.hour > 23 {
				return fmt.Errorf("invalid hour %d: must be 0-23", clusterOptions.hour)
			}

			filter.Hour = &clusterOptions.hour
		}

		if clusterOptions.borough != "" {
			boroughs, err := repo.Boroughs()
			if err != nil {
				return err
			}

			resolved, ok := trips.ResolveBorough(clusterOptions.borough, boroughs)
			if !ok {
				return fmt.Errorf("unknown borough %q", clusterOptions.borough)
			}

			filter.Borough = resolved
		}

		pickups, err := repo.Pickups(filter)
		if err != nil {
			return err
		}

		points := make([]spatial.Point, len(pickups))
		ids := make([]int64, len(pickups))

		for i, p := range pickups {
			points[i] = p.Point
			ids[i] = p.ID
		}

		start := time.Now()

		labels, err := hotspot.Cluster(points, params)
		if err != nil {
			return err
		}

		if err := repo.SaveLabels(ids, labels); err != nil {
			return err
		}

		clusters, noise := hotspot.Summarize(labels)
		log.Printf(
			"Clustered %s trips in %v - %d hotspots, %s noise points (eps=%g rad, min-points=%d)",
			utils.FormatInt(int64(len(labels))),
			time.Since(start).Round(time.Millisecond),
			clusters,
			utils.FormatInt(int64(noise)),
			params.Eps,
			params.MinPoints,
		)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	defaults := hotspot.DefaultParams()
	clusterCmd.Flags().Float64Var(
		&clusterOptions.eps,
		"eps",
		defaults.Eps,
		"Neighborhood radius as an angular distance in radians",
	)
	clusterCmd.Flags().Float64Var(
		&clusterOptions.epsKm,
		"eps-km",
		spatial.Kilometers(defaults.Eps),
		"Neighborhood radius in kilometers (alternative to --eps)",
	)
	clusterCmd.Flags().IntVar(
		&clusterOptions.minPoints,
		"min-points",
		defaults.MinPoints,
		"Minimum neighborhood size for a pickup to seed a hotspot",
	)
	clusterCmd.Flags().IntVar(
		&clusterOptions.hour,
		"hour",
		0,
		"Only cluster pickups from this hour of day (0-23)",
	)
	clusterCmd.Flags().StringVar(
		&clusterOptions.borough,
		"borough",
		"",
		"Only cluster pickups from this borough",
	)
}
